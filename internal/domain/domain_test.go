package domain

import (
	"errors"
	"testing"
	"time"
)

func TestMonitor_IsDue(t *testing.T) {
	now := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	m := Monitor{IntervalSeconds: 60}
	if !m.IsDue(now) {
		t.Fatalf("never-checked monitor should be due")
	}

	almost := now.Add(-60*time.Second + time.Second)
	m.LastCheckedAt = &almost
	if m.IsDue(now) {
		t.Fatalf("monitor checked %s ago should be skipped", now.Sub(almost))
	}

	exact := now.Add(-60 * time.Second)
	m.LastCheckedAt = &exact
	if !m.IsDue(now) {
		t.Fatalf("monitor checked exactly one interval ago should be due")
	}
}

func TestMonitor_ApplyDefaultsAndValidate(t *testing.T) {
	m := Monitor{URL: "example.com", IsActive: true}
	m.ApplyDefaults()
	if m.URL != "https://example.com" {
		t.Fatalf("want https prefix, got %q", m.URL)
	}
	if m.Method != "GET" || m.ExpectedStatus != 200 || m.IntervalSeconds != 300 || m.TimeoutSeconds != 30 {
		t.Fatalf("defaults not applied: %+v", m)
	}
	if m.CurrentStatus != StatusUnknown || m.Kind != KindHTTP {
		t.Fatalf("unexpected status/kind: %s/%s", m.CurrentStatus, m.Kind)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	paused := Monitor{URL: "https://example.com"}
	paused.ApplyDefaults()
	if paused.CurrentStatus != StatusPaused {
		t.Fatalf("inactive monitor should start paused, got %s", paused.CurrentStatus)
	}

	bad := m
	bad.Method = "DELETE"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMonitor) {
		t.Fatalf("want ErrInvalidMonitor, got %v", err)
	}
	bad = m
	bad.URL = "ftp://example.com"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMonitor) {
		t.Fatalf("want ErrInvalidMonitor for ftp, got %v", err)
	}
}

func TestUptimePercentage(t *testing.T) {
	cases := []struct {
		total, up int
		want      float64
	}{
		{0, 0, 100.0},
		{3, 3, 100.0},
		{3, 2, 66.67},
		{4, 0, 0},
	}
	for _, c := range cases {
		if got := UptimePercentage(c.total, c.up); got != c.want {
			t.Fatalf("UptimePercentage(%d,%d)=%v want %v", c.total, c.up, got, c.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("ok", 10); got != "ok" {
		t.Fatalf("got %q", got)
	}
}
