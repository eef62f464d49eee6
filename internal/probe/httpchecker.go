package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxRedirects = 20
	UserAgent    = "StatusPulse-Monitor/1.0"
)

type HTTPChecker struct {
	Client *http.Client
}

// NewHTTPChecker returns a checker that follows up to 20 redirects and verifies TLS.
// Timeouts come from each Request, not from the client.
func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{CheckRedirect: limitRedirects},
	}
}

func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return ErrTooManyRedirects
	}
	return nil
}

func (h *HTTPChecker) Check(ctx context.Context, req Request) Result {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return failed(err, req.Timeout)
	}
	httpReq.Header.Set("User-Agent", UserAgent)

	resp, err := h.Client.Do(httpReq)
	if err != nil {
		return failed(err, req.Timeout)
	}
	// drain so latency covers the whole response and the connection is reusable
	_, err = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		return failed(err, req.Timeout)
	}
	latency := int(time.Since(start).Milliseconds())

	code := resp.StatusCode
	out := Result{
		StatusCode: &code,
		LatencyMS:  &latency,
		Up:         code == req.ExpectedStatus,
		Attempts:   1,
		CheckedAt:  time.Now().UTC(),
	}
	if !out.Up {
		out.Failure = FailureStatus
		out.Error = fmt.Sprintf("Expected %d, got %d", req.ExpectedStatus, code)
	}
	return out
}

func failed(err error, timeout time.Duration) Result {
	kind, msg := Describe(err, timeout)
	return Result{
		Failure:   kind,
		Error:     msg,
		Attempts:  1,
		CheckedAt: time.Now().UTC(),
	}
}
