package domain

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

type MonitorID string

// Status is the up/down label the engine keeps on a monitor.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
	StatusPaused  Status = "paused"
)

// StatusFor maps a probe outcome to up or down.
func StatusFor(up bool) Status {
	if up {
		return StatusUp
	}
	return StatusDown
}

// CheckKind selects which prober runs for a monitor.
type CheckKind string

const (
	KindHTTP         CheckKind = "http"
	KindCapabilities CheckKind = "schp"
)

const (
	DefaultIntervalSeconds = 300
	DefaultTimeoutSeconds  = 30
	DefaultExpectedStatus  = 200
)

type Monitor struct {
	ID                 MonitorID  `json:"id"`
	Name               string     `json:"name"`
	URL                string     `json:"url"`
	Method             string     `json:"method"`
	ExpectedStatus     int        `json:"expected_status"`
	IntervalSeconds    int        `json:"check_interval_seconds"`
	TimeoutSeconds     int        `json:"timeout_seconds"`
	Kind               CheckKind  `json:"check_kind"`
	IsActive           bool       `json:"is_active"`
	CurrentStatus      Status     `json:"current_status"`
	LastCheckedAt      *time.Time `json:"last_checked_at"`
	LastStatusChangeAt *time.Time `json:"last_status_change_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (m Monitor) Interval() time.Duration { return time.Duration(m.IntervalSeconds) * time.Second }
func (m Monitor) Timeout() time.Duration  { return time.Duration(m.TimeoutSeconds) * time.Second }

// IsDue reports whether the check interval has elapsed since the last check.
func (m Monitor) IsDue(now time.Time) bool {
	if m.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*m.LastCheckedAt) >= m.Interval()
}

// ApplyDefaults fills the settings fields a caller left empty.
func (m *Monitor) ApplyDefaults() {
	m.URL = NormalizeURL(m.URL)
	m.Method = strings.ToUpper(strings.TrimSpace(m.Method))
	if m.Method == "" {
		m.Method = "GET"
	}
	if m.ExpectedStatus == 0 {
		m.ExpectedStatus = DefaultExpectedStatus
	}
	if m.IntervalSeconds == 0 {
		m.IntervalSeconds = DefaultIntervalSeconds
	}
	if m.TimeoutSeconds == 0 {
		m.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if m.Kind == "" {
		m.Kind = KindHTTP
	}
	if m.Name == "" {
		m.Name = m.URL
	}
	if m.CurrentStatus == "" {
		m.CurrentStatus = StatusUnknown
		if !m.IsActive {
			m.CurrentStatus = StatusPaused
		}
	}
}

var ErrInvalidMonitor = errors.New("invalid monitor")

// Validate checks the settings fields. Errors wrap ErrInvalidMonitor.
func (m Monitor) Validate() error {
	u, err := url.Parse(m.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url %q must be http(s)", ErrInvalidMonitor, m.URL)
	}
	switch m.Method {
	case "GET", "HEAD", "POST":
	default:
		return fmt.Errorf("%w: method %q not in GET, HEAD, POST", ErrInvalidMonitor, m.Method)
	}
	if m.ExpectedStatus < 100 || m.ExpectedStatus > 599 {
		return fmt.Errorf("%w: expected status %d", ErrInvalidMonitor, m.ExpectedStatus)
	}
	if m.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidMonitor)
	}
	if m.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidMonitor)
	}
	switch m.Kind {
	case KindHTTP, KindCapabilities:
	default:
		return fmt.Errorf("%w: check kind %q", ErrInvalidMonitor, m.Kind)
	}
	return nil
}

// NormalizeURL trims the input and prefixes https:// when no scheme is given.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return raw
}

// Check is one immutable probe result.
type Check struct {
	ID             string    `json:"id"`
	MonitorID      MonitorID `json:"monitor_id"`
	StatusCode     *int      `json:"status_code"`
	ResponseTimeMS *int      `json:"response_time_ms"`
	IsUp           bool      `json:"is_up"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

type Incident struct {
	ID              string     `json:"id"`
	MonitorID       MonitorID  `json:"monitor_id"`
	StartedAt       time.Time  `json:"started_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	DurationSeconds *int64     `json:"duration_seconds"`
	IsResolved      bool       `json:"is_resolved"`
}

// UptimePercentage is up/total as a percentage rounded to two decimals.
// With no checks the monitor counts as fully up.
func UptimePercentage(total, up int) float64 {
	if total <= 0 {
		return 100.0
	}
	return math.Round(float64(up)/float64(total)*10000) / 100
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
