package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/incident"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
)

type Store interface {
	ActiveMonitors(ctx context.Context) ([]domain.Monitor, error)
	GetMonitor(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error)
	SetMonitorActive(ctx context.Context, id domain.MonitorID, active bool) error
}

type Recorder interface {
	Record(ctx context.Context, id domain.MonitorID, res probe.Result) (incident.Outcome, error)
}

// Scheduler runs due checks with bounded concurrency. At most one check per
// monitor is in flight at any time, whether it came from a cycle or a trigger.
type Scheduler struct {
	Logger      *zap.Logger
	Store       Store
	Recorder    Recorder
	Checkers    map[domain.CheckKind]probe.Checker
	Concurrency int

	now   func() time.Time
	locks *keyedLocks

	cycles   atomic.Int64
	checks   atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
}

// Stats are running totals since start.
type Stats struct {
	Cycles   int64
	Checks   int64
	Failures int64
	Skipped  int64
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycles:   s.cycles.Load(),
		Checks:   s.checks.Load(),
		Failures: s.failures.Load(),
		Skipped:  s.skipped.Load(),
	}
}

func New(
	logger *zap.Logger,
	store Store,
	recorder Recorder,
	checkers map[domain.CheckKind]probe.Checker,
	concurrency int,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		Logger:      logger,
		Store:       store,
		Recorder:    recorder,
		Checkers:    checkers,
		Concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
		locks:       newKeyedLocks(),
	}
}

// MonitorOutcome is the result of checking one monitor in a cycle.
type MonitorOutcome struct {
	MonitorID  domain.MonitorID
	Name       string
	URL        string
	Result     probe.Result
	Transition incident.Transition
	// Err is set when the result could not be recorded.
	Err error
}

// CycleReport counts what one cycle did. Outcomes holds one entry per
// checked monitor in listing order; skipped monitors have none.
type CycleReport struct {
	Active   int
	Due      int
	Checked  int
	Skipped  int
	Failed   int
	Outcomes []MonitorOutcome
}

// RunCycle checks every active monitor that is due. A failure on one monitor
// is logged and counted; it never aborts the cycle. Monitors already being
// checked are skipped.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	ms, err := s.Store.ActiveMonitors(ctx)
	if err != nil {
		s.Logger.Error("cycle_list_failed", zap.String("category", string(domain.CategoryPersistence)), zap.Error(err))
		return CycleReport{}, fmt.Errorf("Scheduler.RunCycle: %w", err)
	}

	now := s.now()
	rep := CycleReport{Active: len(ms)}
	slots := make([]*MonitorOutcome, len(ms))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i, m := range ms {
		if !m.IsDue(now) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		rep.Due++
		g.Go(func() error {
			unlock, ok := s.locks.TryLock(m.ID)
			if !ok {
				s.Logger.Debug("check_skipped_busy", zap.String("monitor_id", string(m.ID)))
				s.skipped.Add(1)
				mu.Lock()
				rep.Skipped++
				mu.Unlock()
				return nil
			}
			defer unlock()

			res, out, err := s.checkAndRecord(ctx, m)
			mu.Lock()
			defer mu.Unlock()
			slots[i] = &MonitorOutcome{MonitorID: m.ID, Name: m.Name, URL: m.URL, Result: res, Transition: out.Transition, Err: err}
			if err != nil {
				rep.Failed++
			} else {
				rep.Checked++
			}
			return nil
		})
	}
	_ = g.Wait()
	s.cycles.Add(1)

	for _, o := range slots {
		if o != nil {
			rep.Outcomes = append(rep.Outcomes, *o)
		}
	}

	s.Logger.Info("cycle_complete",
		zap.Int("active", rep.Active),
		zap.Int("due", rep.Due),
		zap.Int("checked", rep.Checked),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
	)
	return rep, ctx.Err()
}

// TriggerCheck runs one check now, ignoring the interval. It waits for any
// in-flight check of the same monitor. Returns nil, nil if the monitor does
// not exist.
func (s *Scheduler) TriggerCheck(ctx context.Context, id domain.MonitorID) (*probe.Result, error) {
	if _, err := s.Store.GetMonitor(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Scheduler.TriggerCheck: %w", err)
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Scheduler.TriggerCheck: %w", err)
	}
	defer unlock()

	// Re-read under the lock so settings changed while waiting are used.
	m, err := s.Store.GetMonitor(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Scheduler.TriggerCheck: %w", err)
	}
	res, _, err := s.checkAndRecord(ctx, *m)
	if err != nil {
		return &res, err
	}
	return &res, nil
}

// SetActive pauses or resumes a monitor. It waits for any in-flight check so
// the check's status write cannot land after the pause.
func (s *Scheduler) SetActive(ctx context.Context, id domain.MonitorID, active bool) error {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("Scheduler.SetActive: %w", err)
	}
	defer unlock()
	if err := s.Store.SetMonitorActive(ctx, id, active); err != nil {
		return fmt.Errorf("Scheduler.SetActive: %w", err)
	}
	return nil
}

func (s *Scheduler) checkAndRecord(ctx context.Context, m domain.Monitor) (probe.Result, incident.Outcome, error) {
	log := s.Logger.With(zap.String("monitor_id", string(m.ID)), zap.String("url", m.URL))

	var res probe.Result
	if checker, ok := s.Checkers[m.Kind]; ok {
		res = checker.Check(ctx, probe.Request{
			URL:            m.URL,
			Method:         m.Method,
			ExpectedStatus: m.ExpectedStatus,
			Timeout:        m.Timeout(),
		})
	} else {
		// Recorded as a down check so the monitor reflects the misconfiguration.
		log.Error("check_kind_unsupported", zap.String("category", string(domain.CategoryValidation)), zap.String("kind", string(m.Kind)))
		s.failures.Add(1)
		res = probe.Result{
			Error:     fmt.Sprintf("Unsupported check kind %q", m.Kind),
			Failure:   probe.FailureConfig,
			CheckedAt: s.now(),
		}
	}

	fields := []zap.Field{
		zap.Bool("up", res.Up),
		zap.String("failure", string(res.Failure)),
		zap.String("error", res.Error),
		zap.Int("attempts", res.Attempts),
	}
	if res.StatusCode != nil {
		fields = append(fields, zap.Int("status", *res.StatusCode))
	}
	if res.LatencyMS != nil {
		fields = append(fields, zap.Int("latency_ms", *res.LatencyMS))
	}
	if res.Failure == probe.FailureConnect {
		d := probe.DiagnoseURL(ctx, m.URL)
		fields = append(fields,
			zap.String("category", string(domain.CategoryTransport)),
			zap.String("dns_class", string(d.Class)),
			zap.String("dns_error", d.ResolverError),
		)
	}
	log.Debug("checked", fields...)

	s.checks.Add(1)
	out, err := s.Recorder.Record(ctx, m.ID, res)
	if err != nil {
		s.failures.Add(1)
		return res, out, err
	}
	return res, out, nil
}
