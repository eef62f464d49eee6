package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
)

// Store is the subset of repo.Store the tracker writes through.
type Store interface {
	GetMonitor(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error)
	InsertCheck(ctx context.Context, c *domain.Check) error
	UpdateMonitorStatus(ctx context.Context, id domain.MonitorID, u repo.StatusUpdate) error
	OpenIncidents(ctx context.Context, id domain.MonitorID) ([]domain.Incident, error)
	InsertIncident(ctx context.Context, in *domain.Incident) error
	UpdateIncident(ctx context.Context, incidentID string, u repo.IncidentUpdate) error
}

// Dispatcher delivers alerts for a transition.
type Dispatcher interface {
	Dispatch(ctx context.Context, m domain.Monitor, status domain.Status)
}

// Publisher emits status-change events to an external stream.
type Publisher interface {
	Publish(ctx context.Context, m domain.Monitor, status domain.Status, at time.Time) error
}

type Tracker struct {
	store     Store
	alerts    Dispatcher
	publisher Publisher
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Tracker)

func WithPublisher(p Publisher) Option        { return func(t *Tracker) { t.publisher = p } }
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func NewTracker(store Store, alerts Dispatcher, log *zap.Logger, opts ...Option) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{store: store, alerts: alerts, log: log, now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Outcome is what Record did for one check.
type Outcome struct {
	Monitor    domain.Monitor
	Check      domain.Check
	Transition Transition
	// StatusUpdated is false for paused monitors, whose status checks never
	// touch. LastCheckedAt still advances.
	StatusUpdated bool
}

// Record persists the check, applies the transition and dispatches alerts.
// The monitor is re-read first; if that fails nothing is written.
func (t *Tracker) Record(ctx context.Context, id domain.MonitorID, res probe.Result) (Outcome, error) {
	log := t.log.With(zap.String("monitor_id", string(id)))

	m, err := t.store.GetMonitor(ctx, id)
	if err != nil {
		cat := domain.CategoryPersistence
		if errors.Is(err, repo.ErrNotFound) {
			cat = domain.CategoryValidation
		}
		log.Warn("monitor_lookup_failed", zap.String("category", string(cat)), zap.Error(err))
		return Outcome{}, fmt.Errorf("Tracker.Record: %w", err)
	}

	now := t.now()
	check := domain.Check{
		MonitorID:      id,
		StatusCode:     res.StatusCode,
		ResponseTimeMS: res.LatencyMS,
		IsUp:           res.Up,
		ErrorMessage:   res.Error,
		CheckedAt:      now,
	}
	if err := t.store.InsertCheck(ctx, &check); err != nil {
		return t.persistFailed(log, "insert_check", err)
	}
	out := Outcome{Monitor: *m, Check: check}

	if !m.IsActive {
		if err := t.store.UpdateMonitorStatus(ctx, id, repo.StatusUpdate{LastCheckedAt: now}); err != nil {
			return t.persistFailed(log, "update_last_checked", err)
		}
		out.Monitor.LastCheckedAt = &now
		log.Info("check_recorded_paused", zap.Bool("up", res.Up))
		return out, nil
	}

	tr := Apply(m.CurrentStatus, res.Up)
	out.Transition = tr

	switch tr.Effect {
	case EffectOpen:
		if err := t.open(ctx, log, id, now); err != nil {
			return t.persistFailed(log, "open_incident", err)
		}
	case EffectResolve:
		if err := t.resolve(ctx, log, id, now); err != nil {
			return t.persistFailed(log, "resolve_incident", err)
		}
	}

	update := repo.StatusUpdate{Status: &tr.To, LastCheckedAt: now}
	if tr.Effect != EffectNone {
		update.LastStatusChangeAt = &now
	}
	if err := t.store.UpdateMonitorStatus(ctx, id, update); err != nil {
		if errors.Is(err, repo.ErrInactive) {
			// Paused while the check was in flight.
			log.Info("check_recorded_paused", zap.Bool("up", res.Up), zap.String("status_discarded", string(tr.To)))
			out.Transition = Transition{}
			out.Monitor.LastCheckedAt = &now
			return out, nil
		}
		return t.persistFailed(log, "update_monitor_status", err)
	}
	out.StatusUpdated = true
	out.Monitor.CurrentStatus = tr.To
	out.Monitor.LastCheckedAt = &now
	if update.LastStatusChangeAt != nil {
		out.Monitor.LastStatusChangeAt = &now
	}

	if tr.Notify() {
		log.Info("status_changed",
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)),
			zap.String("incident", tr.Effect.String()),
		)
		if t.alerts != nil {
			t.alerts.Dispatch(ctx, out.Monitor, tr.To)
		}
		if t.publisher != nil {
			if err := t.publisher.Publish(ctx, out.Monitor, tr.To, now); err != nil {
				log.Warn("status_event_publish_failed", zap.String("category", string(domain.CategoryDelivery)), zap.Error(err))
			}
		}
	}
	return out, nil
}

func (t *Tracker) persistFailed(log *zap.Logger, step string, err error) (Outcome, error) {
	log.Error("persist_failed",
		zap.String("category", string(domain.CategoryPersistence)),
		zap.String("step", step),
		zap.Error(err),
	)
	return Outcome{}, fmt.Errorf("Tracker.Record %s: %w", step, err)
}

func (t *Tracker) open(ctx context.Context, log *zap.Logger, id domain.MonitorID, now time.Time) error {
	open, err := t.store.OpenIncidents(ctx, id)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		log.Warn("incident_already_open", zap.String("incident_id", open[0].ID))
		return nil
	}
	in := &domain.Incident{MonitorID: id, StartedAt: now}
	if err := t.store.InsertIncident(ctx, in); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			log.Warn("incident_already_open")
			return nil
		}
		return err
	}
	log.Info("incident_opened", zap.String("incident_id", in.ID))
	return nil
}

func (t *Tracker) resolve(ctx context.Context, log *zap.Logger, id domain.MonitorID, now time.Time) error {
	open, err := t.store.OpenIncidents(ctx, id)
	if err != nil {
		return err
	}
	for _, in := range open {
		dur := int64(now.Sub(in.StartedAt) / time.Second)
		if err := t.store.UpdateIncident(ctx, in.ID, repo.IncidentUpdate{ResolvedAt: now, DurationSeconds: dur}); err != nil {
			return err
		}
		log.Info("incident_resolved", zap.String("incident_id", in.ID), zap.Int64("duration_seconds", dur))
	}
	return nil
}
