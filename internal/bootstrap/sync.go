package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/config"
	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

// Namespace for ids derived from the monitor file, so the same URL always
// maps to the same monitor across restarts and reloads.
var fileNamespace = uuid.MustParse("6f1c7c52-3b0e-4d4e-9b59-5d4f3b1e2a10")

func MonitorIDFor(url string) domain.MonitorID {
	return domain.MonitorID(uuid.NewSHA1(fileNamespace, []byte(url)).String())
}

func alertIDFor(id domain.MonitorID, ch domain.Channel, dest string) string {
	return uuid.NewSHA1(fileNamespace, []byte(string(id)+"|"+string(ch)+"|"+dest)).String()
}

type SyncReport struct {
	Created int
	Updated int
	Alerts  int
}

// SyncMonitors upserts the monitors and alert configs in f. Settings are
// overwritten; status fields are only touched through pause and resume.
// Monitors missing from the file are left alone.
func SyncMonitors(ctx context.Context, store repo.Store, f *config.MonitorFile, log *zap.Logger) (SyncReport, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var rep SyncReport
	var errs error
	for _, spec := range f.Monitors {
		m := spec.Monitor()
		m.ID = MonitorIDFor(m.URL)

		if err := upsertMonitor(ctx, store, &m, &rep); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("monitor %s: %w", m.URL, err))
			continue
		}
		for _, a := range spec.Alerts {
			cfg := &domain.AlertConfig{
				MonitorID:   m.ID,
				Channel:     domain.Channel(a.Channel),
				Destination: a.Destination,
				IsActive:    a.IsActive(),
			}
			cfg.ID = alertIDFor(m.ID, cfg.Channel, cfg.Destination)
			if err := store.SaveAlertConfig(ctx, cfg); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("alert %s %s: %w", m.URL, a.Channel, err))
				continue
			}
			rep.Alerts++
		}
	}
	log.Info("monitors_synced",
		zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated),
		zap.Int("alerts", rep.Alerts),
		zap.Int("errors", len(multierr.Errors(errs))),
	)
	return rep, errs
}

func upsertMonitor(ctx context.Context, store repo.Store, m *domain.Monitor, rep *SyncReport) error {
	cur, err := store.GetMonitor(ctx, m.ID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		if err := store.CreateMonitor(ctx, m); err != nil {
			return err
		}
		rep.Created++
		return nil
	case err != nil:
		return err
	}

	if err := store.UpdateMonitorSettings(ctx, m); err != nil {
		return err
	}
	if cur.IsActive != m.IsActive {
		if err := store.SetMonitorActive(ctx, m.ID, m.IsActive); err != nil {
			return err
		}
	}
	rep.Updated++
	return nil
}
