package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	// ErrInactive is returned when a status is written to a paused monitor.
	ErrInactive = errors.New("monitor inactive")
)

// StatusUpdate carries the fields the engine writes after a check.
// Status and LastStatusChangeAt are left untouched when nil. They are only
// applied while the monitor is active; otherwise LastCheckedAt is still
// written and ErrInactive is returned.
type StatusUpdate struct {
	Status             *domain.Status
	LastCheckedAt      time.Time
	LastStatusChangeAt *time.Time
}

// IncidentUpdate resolves an incident.
type IncidentUpdate struct {
	ResolvedAt      time.Time
	DurationSeconds int64
}

// Ports (interfaces): swap in any DB adapter.
type MonitorStore interface {
	ActiveMonitors(ctx context.Context) ([]domain.Monitor, error)
	ListMonitors(ctx context.Context) ([]domain.Monitor, error)
	// GetMonitor returns ErrNotFound when id is unknown.
	GetMonitor(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error)
	// CreateMonitor returns ErrDuplicate when the id is taken.
	CreateMonitor(ctx context.Context, m *domain.Monitor) error
	// UpdateMonitorSettings writes settings fields only, never status fields.
	UpdateMonitorSettings(ctx context.Context, m *domain.Monitor) error
	// SetMonitorActive pauses (status paused) or resumes (status unknown) a monitor.
	SetMonitorActive(ctx context.Context, id domain.MonitorID, active bool) error
	UpdateMonitorStatus(ctx context.Context, id domain.MonitorID, u StatusUpdate) error
}

type CheckStore interface {
	InsertCheck(ctx context.Context, c *domain.Check) error
	RecentChecks(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Check, error)
	// CountChecks returns total and up checks since the given time.
	CountChecks(ctx context.Context, id domain.MonitorID, since time.Time) (total, up int, err error)
}

type IncidentStore interface {
	OpenIncidents(ctx context.Context, id domain.MonitorID) ([]domain.Incident, error)
	InsertIncident(ctx context.Context, in *domain.Incident) error
	UpdateIncident(ctx context.Context, incidentID string, u IncidentUpdate) error
	ListIncidents(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Incident, error)
}

type AlertStore interface {
	ActiveAlertConfigs(ctx context.Context, id domain.MonitorID) ([]domain.AlertConfig, error)
	// SaveAlertConfig inserts or replaces by ID.
	SaveAlertConfig(ctx context.Context, c *domain.AlertConfig) error
	InsertAlertHistory(ctx context.Context, h *domain.AlertHistory) error
}

// Store is everything the engine and API need.
type Store interface {
	MonitorStore
	CheckStore
	IncidentStore
	AlertStore
}
