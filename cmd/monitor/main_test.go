package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/scheduler"
)

func TestFormatOutcome(t *testing.T) {
	ms := 42
	cases := []struct {
		name string
		in   scheduler.MonitorOutcome
		want string
	}{
		{
			name: "up",
			in:   scheduler.MonitorOutcome{Name: "shop", Result: probe.Result{Up: true, LatencyMS: &ms}},
			want: "shop: UP (42 ms)",
		},
		{
			name: "down without response",
			in:   scheduler.MonitorOutcome{URL: "https://x.example.com", Result: probe.Result{Error: "Connection refused"}},
			want: "https://x.example.com: DOWN - Connection refused",
		},
		{
			name: "not recorded",
			in:   scheduler.MonitorOutcome{Name: "api", Result: probe.Result{Up: true, LatencyMS: &ms}, Err: errors.New("db down")},
			want: "api: UP (42 ms) [not recorded: db down]",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, formatOutcome(c.in))
		})
	}
}
