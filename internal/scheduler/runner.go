package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner drives RunCycle on a cron schedule such as "@every 30s".
type Runner struct {
	sched    *Scheduler
	schedule string
	log      *zap.Logger
}

func NewRunner(s *Scheduler, schedule string, log *zap.Logger) (*Runner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("NewRunner: invalid schedule %q: %w", schedule, err)
	}
	return &Runner{sched: s, schedule: schedule, log: log}, nil
}

// RunOnce executes a single cycle.
func (r *Runner) RunOnce(ctx context.Context) (CycleReport, error) {
	return r.sched.RunCycle(ctx)
}

// Run does an immediate pass, then runs on schedule until ctx is cancelled.
// Overlapping cycles are skipped.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.log.Sugar()})))
	if _, err := c.AddFunc(r.schedule, func() { r.cycle(ctx) }); err != nil {
		return fmt.Errorf("Runner.Run: %w", err)
	}

	r.log.Info("scheduler_started", zap.String("schedule", r.schedule), zap.Int("concurrency", r.sched.Concurrency))
	r.cycle(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	r.log.Info("scheduler_stopped")
	return nil
}

func (r *Runner) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.sched.RunCycle(ctx); err != nil && ctx.Err() == nil {
		r.log.Warn("cycle_failed", zap.Error(err))
	}
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}
