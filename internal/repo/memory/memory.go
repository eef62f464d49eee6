package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

// Store keeps everything in maps. It backs tests and single-process runs
// without a database.
type Store struct {
	mu        sync.RWMutex
	monitors  map[domain.MonitorID]*domain.Monitor
	checks    []domain.Check
	incidents []*domain.Incident
	alerts    map[string]domain.AlertConfig
	history   []domain.AlertHistory
}

func New() *Store {
	return &Store{
		monitors: make(map[domain.MonitorID]*domain.Monitor),
		checks:   make([]domain.Check, 0, 128),
		alerts:   make(map[string]domain.AlertConfig),
	}
}

// ---- MonitorStore ----

func (m *Store) ActiveMonitors(ctx context.Context) ([]domain.Monitor, error) {
	return m.listMonitors(true), nil
}

func (m *Store) ListMonitors(ctx context.Context) ([]domain.Monitor, error) {
	return m.listMonitors(false), nil
}

func (m *Store) listMonitors(activeOnly bool) []domain.Monitor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Monitor, 0, len(m.monitors))
	for _, mon := range m.monitors {
		if activeOnly && !mon.IsActive {
			continue
		}
		out = append(out, copyMonitor(mon))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Store) GetMonitor(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mon, ok := m.monitors[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := copyMonitor(mon)
	return &c, nil
}

func (m *Store) CreateMonitor(ctx context.Context, mon *domain.Monitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mon.ID == "" {
		mon.ID = domain.MonitorID(uuid.NewString())
	}
	if _, ok := m.monitors[mon.ID]; ok {
		return repo.ErrDuplicate
	}
	if mon.CreatedAt.IsZero() {
		mon.CreatedAt = time.Now().UTC()
	}
	c := copyMonitor(mon)
	m.monitors[mon.ID] = &c
	return nil
}

func (m *Store) UpdateMonitorSettings(ctx context.Context, mon *domain.Monitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.monitors[mon.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Name = mon.Name
	cur.URL = mon.URL
	cur.Method = mon.Method
	cur.ExpectedStatus = mon.ExpectedStatus
	cur.IntervalSeconds = mon.IntervalSeconds
	cur.TimeoutSeconds = mon.TimeoutSeconds
	cur.Kind = mon.Kind
	return nil
}

func (m *Store) SetMonitorActive(ctx context.Context, id domain.MonitorID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.monitors[id]
	if !ok {
		return repo.ErrNotFound
	}
	cur.IsActive = active
	if active {
		cur.CurrentStatus = domain.StatusUnknown
	} else {
		cur.CurrentStatus = domain.StatusPaused
	}
	return nil
}

func (m *Store) UpdateMonitorStatus(ctx context.Context, id domain.MonitorID, u repo.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.monitors[id]
	if !ok {
		return repo.ErrNotFound
	}
	checked := u.LastCheckedAt
	cur.LastCheckedAt = &checked
	if !cur.IsActive {
		if u.Status != nil {
			return repo.ErrInactive
		}
		return nil
	}
	if u.Status != nil {
		cur.CurrentStatus = *u.Status
	}
	if u.LastStatusChangeAt != nil {
		changed := *u.LastStatusChangeAt
		cur.LastStatusChangeAt = &changed
	}
	return nil
}

// ---- CheckStore ----

func (m *Store) InsertCheck(ctx context.Context, c *domain.Check) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CheckedAt.IsZero() {
		c.CheckedAt = time.Now().UTC()
	}
	m.checks = append(m.checks, *c)
	return nil
}

func (m *Store) RecentChecks(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Check, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Check
	for i := len(m.checks) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.checks[i].MonitorID == id {
			out = append(out, m.checks[i])
		}
	}
	return out, nil
}

func (m *Store) CountChecks(ctx context.Context, id domain.MonitorID, since time.Time) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total, up int
	for _, c := range m.checks {
		if c.MonitorID != id || c.CheckedAt.Before(since) {
			continue
		}
		total++
		if c.IsUp {
			up++
		}
	}
	return total, up, nil
}

// ---- IncidentStore ----

func (m *Store) OpenIncidents(ctx context.Context, id domain.MonitorID) ([]domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Incident
	for _, in := range m.incidents {
		if in.MonitorID == id && !in.IsResolved {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (m *Store) InsertIncident(ctx context.Context, in *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	c := *in
	m.incidents = append(m.incidents, &c)
	return nil
}

func (m *Store) UpdateIncident(ctx context.Context, incidentID string, u repo.IncidentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.incidents {
		if in.ID != incidentID {
			continue
		}
		resolved := u.ResolvedAt
		dur := u.DurationSeconds
		in.ResolvedAt = &resolved
		in.DurationSeconds = &dur
		in.IsResolved = true
		return nil
	}
	return repo.ErrNotFound
}

func (m *Store) ListIncidents(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Incident
	for i := len(m.incidents) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.incidents[i].MonitorID == id {
			out = append(out, *m.incidents[i])
		}
	}
	return out, nil
}

// ---- AlertStore ----

func (m *Store) ActiveAlertConfigs(ctx context.Context, id domain.MonitorID) ([]domain.AlertConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.AlertConfig
	for _, c := range m.alerts {
		if c.MonitorID == id && c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) SaveAlertConfig(ctx context.Context, c *domain.AlertConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.alerts[c.ID] = *c
	return nil
}

func (m *Store) InsertAlertHistory(ctx context.Context, h *domain.AlertHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.SentAt.IsZero() {
		h.SentAt = time.Now().UTC()
	}
	m.history = append(m.history, *h)
	return nil
}

// AlertHistory returns the audit rows for a monitor in insertion order.
func (m *Store) AlertHistory(id domain.MonitorID) []domain.AlertHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.AlertHistory
	for _, h := range m.history {
		if h.MonitorID == id {
			out = append(out, h)
		}
	}
	return out
}

func copyMonitor(m *domain.Monitor) domain.Monitor {
	c := *m
	if m.LastCheckedAt != nil {
		t := *m.LastCheckedAt
		c.LastCheckedAt = &t
	}
	if m.LastStatusChangeAt != nil {
		t := *m.LastStatusChangeAt
		c.LastStatusChangeAt = &t
	}
	return c
}
