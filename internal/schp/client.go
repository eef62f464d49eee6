package schp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/statuspulse/internal/probe"
)

const maxBody = 1 << 20

// Result is the outcome of one capability fetch.
type Result struct {
	URL                string
	Success            bool
	Document           *Document
	Status             string
	FailedCapabilities []string
	StatusCode         *int
	LatencyMS          *int
	Error              string
	Failure            probe.FailureKind
	FetchedAt          time.Time
}

// IsUp reports whether the fetch succeeded with an operational status.
func (r Result) IsUp() bool { return r.Success && IsUp(r.Status) }

type Client struct {
	HTTP *http.Client
}

// NewClient shares the checker's redirect policy. TLS is verified.
func NewClient() *Client {
	return &Client{HTTP: probe.NewHTTPChecker().Client}
}

// NormalizeURL appends the capability endpoint path unless already present.
func NormalizeURL(raw string) string {
	if strings.HasSuffix(raw, EndpointPath) {
		return raw
	}
	return strings.TrimRight(raw, "/") + EndpointPath
}

// Fetch performs one GET against the capability endpoint of rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string, timeout time.Duration) Result {
	res := Result{URL: NormalizeURL(rawURL)}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return res.fail(err, timeout)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", probe.UserAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return res.fail(err, timeout)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		return res.fail(err, timeout)
	}
	latency := int(time.Since(start).Milliseconds())
	code := resp.StatusCode
	res.StatusCode = &code
	res.LatencyMS = &latency
	res.FetchedAt = time.Now().UTC()

	if code != http.StatusOK {
		res.Failure = probe.FailureProtocol
		res.Error = fmt.Sprintf("HTTP %d", code)
		return res
	}
	if len(body) > maxBody {
		res.Failure = probe.FailureProtocol
		res.Error = ErrTooLarge.Error()
		return res
	}
	doc, err := Parse(body)
	if err != nil {
		res.Failure = probe.FailureProtocol
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.Document = doc
	res.Status = Aggregate(doc)
	res.FailedCapabilities = FailedCapabilities(doc)
	return res
}

func (r Result) fail(err error, timeout time.Duration) Result {
	r.Failure, r.Error = probe.Describe(err, timeout)
	r.FetchedAt = time.Now().UTC()
	return r
}

// IsProtocolError reports whether err came from document validation.
func IsProtocolError(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrInvalidJSON) || errors.As(err, &ve)
}
