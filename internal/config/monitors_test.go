package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/statuspulse/internal/domain"
)

const sample = `
monitors:
  - name: shop
    url: shop.example.com
    alerts:
      - channel: email
        destination: ops@example.com
      - channel: webhook
        destination: https://hooks.example.com/x
        active: false
  - url: https://api.example.com/health/capabilities
    check_kind: schp
    method: head
    check_interval_seconds: 60
    active: false
`

func TestParseMonitors_AppliesDefaults(t *testing.T) {
	f, err := ParseMonitors([]byte(sample))
	require.NoError(t, err)
	require.Len(t, f.Monitors, 2)

	shop := f.Monitors[0].Monitor()
	assert.Equal(t, "https://shop.example.com", shop.URL)
	assert.Equal(t, "GET", shop.Method)
	assert.Equal(t, 200, shop.ExpectedStatus)
	assert.Equal(t, 300, shop.IntervalSeconds)
	assert.Equal(t, 30, shop.TimeoutSeconds)
	assert.Equal(t, domain.KindHTTP, shop.Kind)
	assert.True(t, shop.IsActive)
	assert.True(t, f.Monitors[0].Alerts[0].IsActive())
	assert.False(t, f.Monitors[0].Alerts[1].IsActive())

	api := f.Monitors[1].Monitor()
	assert.Equal(t, "https://api.example.com/health/capabilities", api.Name)
	assert.Equal(t, "HEAD", api.Method)
	assert.Equal(t, domain.KindCapabilities, api.Kind)
	assert.False(t, api.IsActive)
	assert.Equal(t, domain.StatusPaused, api.CurrentStatus)
}

func TestParseMonitors_Validation(t *testing.T) {
	cases := map[string]string{
		"bad method":   "monitors:\n  - url: https://a.example.com\n    method: DELETE\n",
		"bad status":   "monitors:\n  - url: https://a.example.com\n    expected_status: 42\n",
		"bad channel":  "monitors:\n  - url: https://a.example.com\n    alerts:\n      - channel: sms\n        destination: x\n",
		"no dest":      "monitors:\n  - url: https://a.example.com\n    alerts:\n      - channel: email\n",
		"duplicate":    "monitors:\n  - url: https://a.example.com\n  - url: a.example.com\n",
		"bad kind":     "monitors:\n  - url: https://a.example.com\n    check_kind: icmp\n",
		"invalid yaml": "monitors: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMonitors([]byte(body))
			require.Error(t, err)
		})
	}
}

func TestParseMonitors_InvalidMonitorWrapsSentinel(t *testing.T) {
	_, err := ParseMonitors([]byte("monitors:\n  - url: ftp://a.example.com\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidMonitor))
}

func TestLoadMonitors_MissingFile(t *testing.T) {
	_, err := LoadMonitors(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWatchMonitors_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("monitors: []\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *MonitorFile, 4)
	go func() { _ = WatchMonitors(ctx, path, nil, func(f *MonitorFile) { got <- f }) }()

	// Give the watcher time to register, then rewrite until an event lands.
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case f := <-got:
			if len(f.Monitors) == 1 {
				assert.Equal(t, "https://shop.example.com", f.Monitors[0].Monitor().URL)
				return
			}
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("monitors:\n  - url: shop.example.com\n"), 0o600))
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
