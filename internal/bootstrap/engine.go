package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/config"
	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/events"
	"github.com/hamed0406/statuspulse/internal/incident"
	"github.com/hamed0406/statuspulse/internal/notify"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/schp"
	"github.com/hamed0406/statuspulse/internal/scheduler"
)

// Engine is the wired monitoring core shared by the binaries.
type Engine struct {
	Store      repo.Store
	Dispatcher *notify.Dispatcher
	Tracker    *incident.Tracker
	Scheduler  *scheduler.Scheduler
	Runner     *scheduler.Runner
	Publisher  *events.Publisher
}

type Option func(*options)

type options struct {
	senders map[domain.Channel]notify.Sender
	writer  events.Writer
}

// WithSenders replaces the channel senders built from config.
func WithSenders(s map[domain.Channel]notify.Sender) Option {
	return func(o *options) { o.senders = s }
}

// WithEventWriter replaces the Kafka writer built from config.
func WithEventWriter(w events.Writer) Option {
	return func(o *options) { o.writer = w }
}

func Build(cfg config.Config, store repo.Store, log *zap.Logger, opts ...Option) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	if o.senders == nil {
		o.senders = map[domain.Channel]notify.Sender{
			domain.ChannelEmail: notify.NewEmail(notify.SMTPConfig{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Email:    cfg.SMTP.Email,
				Password: cfg.SMTP.Password,
				FromName: cfg.SMTP.FromName,
			}),
			domain.ChannelWebhook: notify.NewWebhook(),
		}
		if !cfg.SMTP.Configured() {
			log.Warn("email_alerts_disabled", zap.String("reason", "SMTP_EMAIL or SMTP_PASSWORD not set"))
		}
	}
	e := &Engine{Store: store}
	e.Dispatcher = notify.NewDispatcher(store, log, cfg.AlertTimeout, o.senders)

	var trOpts []incident.Option
	if o.writer == nil && len(cfg.Kafka.Brokers) > 0 {
		o.writer = events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.StatusTopic)
		log.Info("status_events_enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.StatusTopic))
	}
	if o.writer != nil {
		e.Publisher = events.NewPublisher(o.writer)
		trOpts = append(trOpts, incident.WithPublisher(e.Publisher))
	}
	e.Tracker = incident.NewTracker(store, e.Dispatcher, log, trOpts...)

	httpChecker := probe.NewRetryChecker(probe.NewHTTPChecker(), cfg.RetryAttempts, cfg.RetryBackoff)
	schpChecker := probe.NewRetryChecker(schp.NewChecker(), cfg.RetryAttempts, cfg.RetryBackoff)
	e.Scheduler = scheduler.New(log, store, e.Tracker, map[domain.CheckKind]probe.Checker{
		domain.KindHTTP:         httpChecker,
		domain.KindCapabilities: schpChecker,
	}, cfg.MaxConcurrentChecks)

	runner, err := scheduler.NewRunner(e.Scheduler, cfg.CycleSchedule, log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap.Build: %w", err)
	}
	e.Runner = runner
	return e, nil
}

func (e *Engine) Close() error {
	if e.Publisher != nil {
		return e.Publisher.Close()
	}
	return nil
}
