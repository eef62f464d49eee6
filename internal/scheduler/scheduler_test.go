package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/incident"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
)

// --- fakes ---

// gatedChecker counts concurrent calls and optionally blocks until released.
type gatedChecker struct {
	inFlight int32
	peak     int32
	calls    int32
	gate     chan struct{}
	started  chan string
}

func (g *gatedChecker) Check(ctx context.Context, req probe.Request) probe.Result {
	n := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)
	atomic.AddInt32(&g.calls, 1)
	for {
		p := atomic.LoadInt32(&g.peak)
		if n <= p || atomic.CompareAndSwapInt32(&g.peak, p, n) {
			break
		}
	}
	if g.started != nil {
		g.started <- req.URL
	}
	if g.gate != nil {
		<-g.gate
	}
	code, ms := 200, 5
	return probe.Result{Up: true, StatusCode: &code, LatencyMS: &ms, Attempts: 1}
}

type fakeRecorder struct {
	mu    sync.Mutex
	ids   []domain.MonitorID
	fails map[domain.MonitorID]bool
}

func (f *fakeRecorder) Record(ctx context.Context, id domain.MonitorID, res probe.Result) (incident.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	if f.fails[id] {
		return incident.Outcome{}, errors.New("db down")
	}
	return incident.Outcome{}, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

var t0 = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func addMonitor(t *testing.T, store *memory.Store, name string, lastChecked *time.Time) domain.Monitor {
	t.Helper()
	m := &domain.Monitor{Name: name, URL: "https://" + name + ".example.com", IsActive: true}
	m.ApplyDefaults()
	require.NoError(t, store.CreateMonitor(context.Background(), m))
	if lastChecked != nil {
		require.NoError(t, store.UpdateMonitorStatus(context.Background(), m.ID, repo.StatusUpdate{LastCheckedAt: *lastChecked}))
	}
	return *m
}

func newSched(store *memory.Store, rec Recorder, chk probe.Checker, concurrency int) *Scheduler {
	s := New(nil, store, rec, map[domain.CheckKind]probe.Checker{domain.KindHTTP: chk}, concurrency)
	s.now = func() time.Time { return t0 }
	return s
}

// --- tests ---

func TestRunCycle_ChecksOnlyDueMonitors(t *testing.T) {
	store := memory.New()
	recent := t0.Add(-10 * time.Second)
	boundary := t0.Add(-300 * time.Second)
	almost := t0.Add(-299 * time.Second)
	never := addMonitor(t, store, "never", nil)
	addMonitor(t, store, "recent", &recent)
	due := addMonitor(t, store, "boundary", &boundary)
	addMonitor(t, store, "almost", &almost)

	rec := &fakeRecorder{}
	rep, err := newSched(store, rec, &gatedChecker{}, 4).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Active)
	assert.Equal(t, 2, rep.Due)
	assert.Equal(t, 2, rep.Checked)
	assert.Equal(t, 2, rec.count())

	require.Len(t, rep.Outcomes, 2)
	var ids []domain.MonitorID
	for _, o := range rep.Outcomes {
		ids = append(ids, o.MonitorID)
		assert.True(t, o.Result.Up)
		assert.NoError(t, o.Err)
	}
	assert.ElementsMatch(t, []domain.MonitorID{never.ID, due.ID}, ids)
}

func TestRunCycle_SkipsPausedMonitors(t *testing.T) {
	store := memory.New()
	m := addMonitor(t, store, "paused", nil)
	require.NoError(t, store.SetMonitorActive(context.Background(), m.ID, false))

	rep, err := newSched(store, &fakeRecorder{}, &gatedChecker{}, 2).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Active)
	assert.Equal(t, 0, rep.Checked)
}

func TestRunCycle_BoundsConcurrency(t *testing.T) {
	store := memory.New()
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		addMonitor(t, store, n, nil)
	}
	chk := &gatedChecker{gate: make(chan struct{}), started: make(chan string, 8)}
	s := newSched(store, &fakeRecorder{}, chk, 3)

	done := make(chan CycleReport)
	go func() {
		rep, _ := s.RunCycle(context.Background())
		done <- rep
	}()

	for i := 0; i < 3; i++ {
		<-chk.started
	}
	// Nothing else can start while three are held.
	select {
	case <-chk.started:
		t.Fatal("fourth check started while limit was 3")
	case <-time.After(50 * time.Millisecond):
	}
	close(chk.gate)

	rep := <-done
	assert.Equal(t, 8, rep.Checked)
	assert.LessOrEqual(t, atomic.LoadInt32(&chk.peak), int32(3))
}

func TestRunCycle_FailureDoesNotAbortCycle(t *testing.T) {
	store := memory.New()
	a := addMonitor(t, store, "a", nil)
	addMonitor(t, store, "b", nil)
	addMonitor(t, store, "c", nil)

	rec := &fakeRecorder{fails: map[domain.MonitorID]bool{a.ID: true}}
	s := newSched(store, rec, &gatedChecker{}, 1)
	rep, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rec.count())
	assert.Equal(t, 2, rep.Checked)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, Stats{Cycles: 1, Checks: 3, Failures: 1}, s.Stats())
}

func TestRunCycle_UnknownKindRecordsDownCheck(t *testing.T) {
	store := memory.New()
	m := addMonitor(t, store, "a", nil)
	tr := incident.NewTracker(store, nil, nil, incident.WithClock(func() time.Time { return t0 }))
	s := New(nil, store, tr, map[domain.CheckKind]probe.Checker{}, 1)
	s.now = func() time.Time { return t0 }

	rep, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Checked)
	require.Len(t, rep.Outcomes, 1)
	assert.False(t, rep.Outcomes[0].Result.Up)
	assert.Equal(t, probe.FailureConfig, rep.Outcomes[0].Result.Failure)
	assert.EqualValues(t, 1, s.Stats().Failures)

	checks, err := store.RecentChecks(context.Background(), m.ID, 0)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.False(t, checks[0].IsUp)
	assert.Contains(t, checks[0].ErrorMessage, "Unsupported check kind")
	got, _ := store.GetMonitor(context.Background(), m.ID)
	assert.Equal(t, domain.StatusDown, got.CurrentStatus)
}

func TestTriggerCheck_UnknownKindReportsDown(t *testing.T) {
	store := memory.New()
	m := addMonitor(t, store, "a", nil)
	s := New(nil, store, &fakeRecorder{}, map[domain.CheckKind]probe.Checker{}, 1)

	res, err := s.TriggerCheck(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Up)
	assert.NotEmpty(t, res.Error)
}

func TestRunCycle_SkipsMonitorAlreadyInFlight(t *testing.T) {
	store := memory.New()
	m := addMonitor(t, store, "busy", nil)
	rec := &fakeRecorder{}
	s := newSched(store, rec, &gatedChecker{}, 2)

	unlock, ok := s.locks.TryLock(m.ID)
	require.True(t, ok)
	rep, err := s.RunCycle(context.Background())
	unlock()

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 0, rec.count())
}

func TestTriggerCheck_SerializesWithCycle(t *testing.T) {
	store := memory.New()
	m := addMonitor(t, store, "solo", nil)
	chk := &gatedChecker{gate: make(chan struct{}), started: make(chan string, 2)}
	s := newSched(store, &fakeRecorder{}, chk, 2)

	cycleDone := make(chan struct{})
	go func() {
		_, _ = s.RunCycle(context.Background())
		close(cycleDone)
	}()
	<-chk.started

	trigDone := make(chan *probe.Result)
	go func() {
		res, _ := s.TriggerCheck(context.Background(), m.ID)
		trigDone <- res
	}()

	select {
	case <-chk.started:
		t.Fatal("trigger ran while cycle check was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	chk.gate <- struct{}{}
	<-cycleDone
	<-chk.started
	chk.gate <- struct{}{}
	res := <-trigDone

	require.NotNil(t, res)
	assert.True(t, res.Up)
	assert.EqualValues(t, 1, atomic.LoadInt32(&chk.peak))
}

func TestSetActive_WaitsForInFlightCheck(t *testing.T) {
	store := memory.New()
	m := addMonitor(t, store, "solo", nil)
	chk := &gatedChecker{gate: make(chan struct{}), started: make(chan string, 1)}
	tr := incident.NewTracker(store, nil, nil, incident.WithClock(func() time.Time { return t0 }))
	s := newSched(store, nil, chk, 1)
	s.Recorder = tr

	cycleDone := make(chan struct{})
	go func() {
		_, _ = s.RunCycle(context.Background())
		close(cycleDone)
	}()
	<-chk.started

	paused := make(chan error, 1)
	go func() { paused <- s.SetActive(context.Background(), m.ID, false) }()

	select {
	case <-paused:
		t.Fatal("pause applied while a check was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(chk.gate)
	<-cycleDone
	require.NoError(t, <-paused)

	got, err := store.GetMonitor(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, domain.StatusPaused, got.CurrentStatus)
}

func TestSetActive_UnknownMonitor(t *testing.T) {
	s := newSched(memory.New(), &fakeRecorder{}, &gatedChecker{}, 1)
	err := s.SetActive(context.Background(), "missing", true)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestTriggerCheck_UnknownMonitor(t *testing.T) {
	s := newSched(memory.New(), &fakeRecorder{}, &gatedChecker{}, 1)
	res, err := s.TriggerCheck(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestTriggerCheck_IgnoresInterval(t *testing.T) {
	store := memory.New()
	recent := t0.Add(-time.Second)
	m := addMonitor(t, store, "fresh", &recent)
	rec := &fakeRecorder{}

	res, err := newSched(store, rec, &gatedChecker{}, 1).TriggerCheck(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, rec.count())
}

func TestTriggerCheck_ContextCancelledWhileWaiting(t *testing.T) {
	store := memory.New()
	m := addMonitor(t, store, "held", nil)
	s := newSched(store, &fakeRecorder{}, &gatedChecker{}, 1)

	unlock, ok := s.locks.TryLock(m.ID)
	require.True(t, ok)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.TriggerCheck(ctx, m.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_WithTrackerEndToEnd(t *testing.T) {
	store := memory.New()
	m := addMonitor(t, store, "e2e", nil)
	tr := incident.NewTracker(store, nil, nil, incident.WithClock(func() time.Time { return t0 }))
	s := newSched(store, nil, &gatedChecker{}, 2)
	s.Recorder = tr

	rep, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Checked)

	got, err := store.GetMonitor(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUp, got.CurrentStatus)
	require.NotNil(t, got.LastCheckedAt)
	assert.True(t, got.LastCheckedAt.Equal(t0))

	// Just checked, so the next cycle at the same instant has nothing due.
	rep, err = s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Due)
}
