package schp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hamed0406/statuspulse/internal/probe"
)

// Checker adapts Client to probe.Checker so capability monitors run
// through the same pipeline as plain HTTP ones.
type Checker struct {
	Client *Client
}

func NewChecker() *Checker { return &Checker{Client: NewClient()} }

func (c *Checker) Check(ctx context.Context, req probe.Request) probe.Result {
	return c.Client.Fetch(ctx, req.URL, req.Timeout).ProbeResult()
}

// ProbeResult converts a fetch into a check outcome. A received response is
// recorded with a synthetic 200 when operational and 503 otherwise.
func (r Result) ProbeResult() probe.Result {
	out := probe.Result{
		Up:        r.IsUp(),
		LatencyMS: r.LatencyMS,
		Failure:   r.Failure,
		Error:     r.Error,
		Attempts:  1,
		CheckedAt: r.FetchedAt,
	}
	if r.StatusCode != nil {
		code := http.StatusServiceUnavailable
		if out.Up {
			code = http.StatusOK
		}
		out.StatusCode = &code
	}
	if r.Success && !out.Up {
		out.Failure = probe.FailureStatus
		if len(r.FailedCapabilities) > 0 {
			out.Error = fmt.Sprintf("%s: %s", title(r.Status), strings.Join(r.FailedCapabilities, ", "))
		} else {
			out.Error = fmt.Sprintf("SCHP status %q", r.Status)
		}
	}
	return out
}

func title(s string) string {
	if s == "" {
		return "Status"
	}
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}
