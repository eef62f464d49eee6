package probe

import (
	"context"
	"time"
)

// Request describes one probe.
type Request struct {
	URL            string
	Method         string
	ExpectedStatus int
	Timeout        time.Duration
}

// FailureKind classifies why a probe was not up.
type FailureKind string

const (
	FailureNone     FailureKind = ""
	FailureStatus   FailureKind = "status"
	FailureTimeout  FailureKind = "timeout"
	FailureConnect  FailureKind = "connect"
	FailureRedirect FailureKind = "redirect"
	FailureOther    FailureKind = "other"
	FailureProtocol FailureKind = "protocol"
	// FailureConfig means the monitor could not be checked as configured.
	FailureConfig FailureKind = "config"
)

// Transport reports whether the failure happened below the HTTP layer.
func (k FailureKind) Transport() bool {
	switch k {
	case FailureTimeout, FailureConnect, FailureRedirect, FailureOther:
		return true
	}
	return false
}

// Result is the outcome of a single probe.
//
// StatusCode and LatencyMS are nil unless a response was fully received.
type Result struct {
	Up         bool
	StatusCode *int
	LatencyMS  *int
	Error      string
	Failure    FailureKind
	Attempts   int
	CheckedAt  time.Time
}

// Checker performs a single check. Failures are reported in the Result, never panicked or returned.
type Checker interface {
	Check(ctx context.Context, req Request) Result
}
