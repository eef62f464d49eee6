package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	apimw "github.com/hamed0406/statuspulse/internal/httpapi/middleware"
	"github.com/hamed0406/statuspulse/internal/incident"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
	"github.com/hamed0406/statuspulse/internal/scheduler"
)

// ---- test helpers ----

type fakeChecker struct {
	out probe.Result
}

func (f *fakeChecker) Check(_ context.Context, _ probe.Request) probe.Result {
	// always return the same result so tests are deterministic
	return f.out
}

type env struct {
	ts    *httptest.Server
	store *memory.Store
	sched *scheduler.Scheduler
}

func setup(t *testing.T, out probe.Result) *env {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	tr := incident.NewTracker(store, nil, log)
	sched := scheduler.New(log, store, tr, map[domain.CheckKind]probe.Checker{
		domain.KindHTTP:         &fakeChecker{out: out},
		domain.KindCapabilities: &fakeChecker{out: out},
	}, 2)

	srv := NewServer(log, store, sched, sched)
	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(keys, nil, 10_000, 10_000, 10_000, 10_000))
	t.Cleanup(ts.Close)
	return &env{ts: ts, store: store, sched: sched}
}

func (e *env) do(t *testing.T, method, path, key string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func ok200() probe.Result {
	code, ms := 200, 12
	return probe.Result{Up: true, StatusCode: &code, LatencyMS: &ms, Attempts: 1}
}

// ---- tests ----

func TestCreateMonitor_OK_Duplicate_Invalid(t *testing.T) {
	e := setup(t, ok200())

	// 1) Create OK; bare host gets https://
	resp := e.do(t, http.MethodPost, "/api/monitors", "adm_test", map[string]any{"url": "example.com", "name": "Example"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	m := decode[domain.Monitor](t, resp)
	assert.Equal(t, "https://example.com", m.URL)
	assert.Equal(t, "Example", m.Name)
	assert.Equal(t, domain.StatusUnknown, m.CurrentStatus)
	assert.Equal(t, 300, m.IntervalSeconds)
	assert.NotEmpty(t, m.ID)

	// 2) Duplicate after normalization is 409
	resp = e.do(t, http.MethodPost, "/api/monitors", "adm_test", map[string]any{"url": "https://EXAMPLE.com:443/"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// 3) Invalid URL is 400
	resp = e.do(t, http.MethodPost, "/api/monitors", "adm_test", map[string]any{"url": "ftp://bad"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 4) Invalid settings are 400
	resp = e.do(t, http.MethodPost, "/api/monitors", "adm_test", map[string]any{"url": "https://x.example.com", "method": "DELETE"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateMonitor_RequiresAdmin(t *testing.T) {
	e := setup(t, ok200())
	resp := e.do(t, http.MethodPost, "/api/monitors", "pub_test", map[string]any{"url": "https://example.com"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/api/monitors", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTriggerCheck_RecordsAndReports(t *testing.T) {
	e := setup(t, ok200())
	m := decode[domain.Monitor](t, e.do(t, http.MethodPost, "/api/monitors", "adm_test", map[string]any{"url": "https://example.com"}))

	resp := e.do(t, http.MethodPost, "/api/monitors/"+string(m.ID)+"/check", "adm_test", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[checkResponse](t, resp)
	assert.True(t, out.IsUp)
	require.NotNil(t, out.StatusCode)
	assert.Equal(t, 200, *out.StatusCode)

	// detail shows the new status and uptime
	resp = e.do(t, http.MethodGet, "/api/monitors/"+string(m.ID), "pub_test", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[monitorDetail](t, resp)
	assert.Equal(t, domain.StatusUp, d.Monitor.CurrentStatus)
	assert.Equal(t, 1, d.TotalChecks)
	assert.Equal(t, 100.0, d.UptimePercentage)

	// checks list
	resp = e.do(t, http.MethodGet, "/api/monitors/"+string(m.ID)+"/checks?limit=5", "pub_test", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	checks := decode[[]domain.Check](t, resp)
	require.Len(t, checks, 1)
	assert.True(t, checks[0].IsUp)
}

func TestTriggerCheck_UnknownMonitor(t *testing.T) {
	e := setup(t, ok200())
	resp := e.do(t, http.MethodPost, "/api/monitors/nope/check", "adm_test", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTriggerCheck_UnsupportedKindIsDown(t *testing.T) {
	e := setup(t, ok200())
	m := &domain.Monitor{URL: "https://odd.example.com", IsActive: true, Kind: domain.CheckKind("ftp")}
	m.ApplyDefaults()
	require.NoError(t, e.store.CreateMonitor(context.Background(), m))

	resp := e.do(t, http.MethodPost, "/api/monitors/"+string(m.ID)+"/check", "adm_test", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[checkResponse](t, resp)
	assert.False(t, out.IsUp)
	assert.Contains(t, out.Error, "Unsupported check kind")

	checks, err := e.store.RecentChecks(context.Background(), m.ID, 0)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.False(t, checks[0].IsUp)
}

func TestPauseResume(t *testing.T) {
	e := setup(t, ok200())
	m := decode[domain.Monitor](t, e.do(t, http.MethodPost, "/api/monitors", "adm_test", map[string]any{"url": "https://example.com"}))

	resp := e.do(t, http.MethodPost, "/api/monitors/"+string(m.ID)+"/pause", "adm_test", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paused := decode[domain.Monitor](t, resp)
	assert.False(t, paused.IsActive)
	assert.Equal(t, domain.StatusPaused, paused.CurrentStatus)

	// manual check on a paused monitor is stored but leaves status alone
	resp = e.do(t, http.MethodPost, "/api/monitors/"+string(m.ID)+"/check", "adm_test", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := e.store.GetMonitor(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, got.CurrentStatus)
	assert.NotNil(t, got.LastCheckedAt)

	resp = e.do(t, http.MethodPost, "/api/monitors/"+string(m.ID)+"/resume", "adm_test", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resumed := decode[domain.Monitor](t, resp)
	assert.True(t, resumed.IsActive)
	assert.Equal(t, domain.StatusUnknown, resumed.CurrentStatus)

	resp = e.do(t, http.MethodPost, "/api/monitors/missing/pause", "adm_test", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIncidentsList(t *testing.T) {
	e := setup(t, ok200())
	m := decode[domain.Monitor](t, e.do(t, http.MethodPost, "/api/monitors", "adm_test", map[string]any{"url": "https://example.com"}))
	start := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	require.NoError(t, e.store.InsertIncident(context.Background(), &domain.Incident{MonitorID: m.ID, StartedAt: start}))

	resp := e.do(t, http.MethodGet, "/api/monitors/"+string(m.ID)+"/incidents", "pub_test", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ins := decode[[]domain.Incident](t, resp)
	require.Len(t, ins, 1)
	assert.False(t, ins[0].IsResolved)
}

func TestAddAlert(t *testing.T) {
	e := setup(t, ok200())
	m := decode[domain.Monitor](t, e.do(t, http.MethodPost, "/api/monitors", "adm_test", map[string]any{"url": "https://example.com"}))

	resp := e.do(t, http.MethodPost, "/api/monitors/"+string(m.ID)+"/alerts", "adm_test", map[string]any{"channel": "webhook", "destination": "https://hooks.example.com/x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cfgs, err := e.store.ActiveAlertConfigs(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, domain.ChannelWebhook, cfgs[0].Channel)

	resp = e.do(t, http.MethodPost, "/api/monitors/"+string(m.ID)+"/alerts", "adm_test", map[string]any{"channel": "sms", "destination": "+100"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	e := setup(t, ok200())
	m := decode[domain.Monitor](t, e.do(t, http.MethodPost, "/api/monitors", "adm_test", map[string]any{"url": "https://example.com"}))
	require.NoError(t, e.store.UpdateMonitorStatus(context.Background(), m.ID, repo.StatusUpdate{Status: ptr(domain.StatusUp), LastCheckedAt: time.Now()}))
	_, err := e.sched.RunCycle(context.Background())
	require.NoError(t, err)

	resp := e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)

	require.Contains(t, mfs, "statuspulse_monitor_up")
	assert.Equal(t, 1.0, mfs["statuspulse_monitor_up"].GetMetric()[0].GetGauge().GetValue())
	require.Contains(t, mfs, "statuspulse_cycles_total")
	assert.Equal(t, 1.0, mfs["statuspulse_cycles_total"].GetMetric()[0].GetCounter().GetValue())
	require.Contains(t, mfs, "statuspulse_monitors")
	assert.Len(t, mfs["statuspulse_monitors"].GetMetric(), 4)
}

func TestHealthz(t *testing.T) {
	e := setup(t, ok200())
	resp := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
