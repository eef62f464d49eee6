package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
)

// ErrNotConfigured means the channel is switched off; no delivery was attempted.
var ErrNotConfigured = errors.New("channel not configured")

const maxFailureLen = 200

// Sender delivers one alert over one channel.
type Sender interface {
	Send(ctx context.Context, cfg domain.AlertConfig, m domain.Monitor, status domain.Status) error
}

type Store interface {
	ActiveAlertConfigs(ctx context.Context, id domain.MonitorID) ([]domain.AlertConfig, error)
	InsertAlertHistory(ctx context.Context, h *domain.AlertHistory) error
}

// Dispatcher fans an alert out to every active config of a monitor.
// Channels run concurrently, each under its own timeout, and a failure on
// one never stops the others.
type Dispatcher struct {
	store   Store
	senders map[domain.Channel]Sender
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func NewDispatcher(store Store, log *zap.Logger, timeout time.Duration, senders map[domain.Channel]Sender) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		store:   store,
		senders: senders,
		timeout: timeout,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch delivers and logs; errors never reach the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, m domain.Monitor, status domain.Status) {
	if _, err := d.Deliver(ctx, m, status); err != nil {
		d.log.Warn("alert_dispatch_incomplete", zap.String("monitor_id", string(m.ID)), zap.Error(err))
	}
}

// Deliver returns the history rows written. The error combines store
// failures only; channel failures are recorded as unsuccessful history.
func (d *Dispatcher) Deliver(ctx context.Context, m domain.Monitor, status domain.Status) ([]domain.AlertHistory, error) {
	cfgs, err := d.store.ActiveAlertConfigs(ctx, m.ID)
	if err != nil {
		d.log.Error("alert_configs_load_failed",
			zap.String("monitor_id", string(m.ID)),
			zap.String("category", string(domain.CategoryPersistence)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("Dispatcher.Deliver: %w", err)
	}

	rows := make([]*domain.AlertHistory, len(cfgs))
	errs := make([]error, len(cfgs))
	var wg conc.WaitGroup
	for i, cfg := range cfgs {
		wg.Go(func() {
			rows[i], errs[i] = d.deliverOne(ctx, cfg, m, status)
		})
	}
	wg.Wait()

	var out []domain.AlertHistory
	for _, h := range rows {
		if h != nil {
			out = append(out, *h)
		}
	}
	return out, multierr.Combine(errs...)
}

func (d *Dispatcher) deliverOne(ctx context.Context, cfg domain.AlertConfig, m domain.Monitor, status domain.Status) (*domain.AlertHistory, error) {
	log := d.log.With(
		zap.String("monitor_id", string(m.ID)),
		zap.String("alert_config_id", cfg.ID),
		zap.String("channel", string(cfg.Channel)),
	)

	sendErr := d.send(ctx, cfg, m, status)
	if errors.Is(sendErr, ErrNotConfigured) {
		log.Debug("alert_channel_skipped")
		return nil, nil
	}

	h := &domain.AlertHistory{
		AlertConfigID: cfg.ID,
		MonitorID:     m.ID,
		Channel:       cfg.Channel,
		WasSuccessful: sendErr == nil,
		SentAt:        d.now(),
	}
	if sendErr == nil {
		h.Message = fmt.Sprintf("%s is %s", m.Name, strings.ToUpper(string(status)))
		log.Info("alert_delivered", zap.String("status", string(status)))
	} else {
		h.Message = "Failed: " + domain.Truncate(sendErr.Error(), maxFailureLen)
		log.Warn("alert_delivery_failed", zap.String("category", string(domain.CategoryDelivery)), zap.Error(sendErr))
	}

	if err := d.store.InsertAlertHistory(ctx, h); err != nil {
		log.Error("alert_history_insert_failed", zap.String("category", string(domain.CategoryPersistence)), zap.Error(err))
		return h, fmt.Errorf("insert alert history %s: %w", cfg.ID, err)
	}
	return h, nil
}

// send runs one channel under its own deadline and turns a panic into an error.
func (d *Dispatcher) send(ctx context.Context, cfg domain.AlertConfig, m domain.Monitor, status domain.Status) error {
	sender, ok := d.senders[cfg.Channel]
	if !ok || sender == nil {
		return fmt.Errorf("unsupported channel %q", cfg.Channel)
	}
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var err error
	var pc panics.Catcher
	pc.Try(func() { err = sender.Send(sctx, cfg, m, status) })
	if r := pc.Recovered(); r != nil {
		return r.AsError()
	}
	return err
}
