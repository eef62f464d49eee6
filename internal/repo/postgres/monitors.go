package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

const monitorColumns = `id, name, url, method, expected_status, check_interval_seconds, timeout_seconds,
       check_kind, is_active, current_status, last_checked_at, last_status_change_at, created_at`

func scanMonitor(row pgx.Row) (domain.Monitor, error) {
	var (
		m      domain.Monitor
		id     string
		kind   string
		status string
	)
	err := row.Scan(&id, &m.Name, &m.URL, &m.Method, &m.ExpectedStatus, &m.IntervalSeconds, &m.TimeoutSeconds,
		&kind, &m.IsActive, &status, &m.LastCheckedAt, &m.LastStatusChangeAt, &m.CreatedAt)
	m.ID = domain.MonitorID(id)
	m.Kind = domain.CheckKind(kind)
	m.CurrentStatus = domain.Status(status)
	return m, err
}

func (s *Store) queryMonitors(ctx context.Context, op, q string) ([]domain.Monitor, error) {
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, wrap(op+" scan", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ActiveMonitors(ctx context.Context) ([]domain.Monitor, error) {
	return s.queryMonitors(ctx, "active monitors",
		`SELECT `+monitorColumns+` FROM monitors WHERE is_active ORDER BY created_at, id`)
}

func (s *Store) ListMonitors(ctx context.Context) ([]domain.Monitor, error) {
	return s.queryMonitors(ctx, "list monitors",
		`SELECT `+monitorColumns+` FROM monitors ORDER BY created_at, id`)
}

func (s *Store) GetMonitor(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error) {
	m, err := scanMonitor(s.pool.QueryRow(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE id = $1`, string(id)))
	if err != nil {
		return nil, wrap("get monitor", err)
	}
	return &m, nil
}

func (s *Store) CreateMonitor(ctx context.Context, m *domain.Monitor) error {
	if m.ID == "" {
		m.ID = domain.MonitorID(uuid.NewString())
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitors (`+monitorColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		string(m.ID), m.Name, m.URL, m.Method, m.ExpectedStatus, m.IntervalSeconds, m.TimeoutSeconds,
		string(m.Kind), m.IsActive, string(m.CurrentStatus), m.LastCheckedAt, m.LastStatusChangeAt, m.CreatedAt)
	if err != nil {
		return wrap("insert monitor", err)
	}
	return nil
}

func (s *Store) UpdateMonitorSettings(ctx context.Context, m *domain.Monitor) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitors
		    SET name=$2, url=$3, method=$4, expected_status=$5,
		        check_interval_seconds=$6, timeout_seconds=$7, check_kind=$8
		  WHERE id=$1`,
		string(m.ID), m.Name, m.URL, m.Method, m.ExpectedStatus, m.IntervalSeconds, m.TimeoutSeconds, string(m.Kind))
	return expectOne("update monitor settings", tag, err)
}

func (s *Store) SetMonitorActive(ctx context.Context, id domain.MonitorID, active bool) error {
	status := domain.StatusPaused
	if active {
		status = domain.StatusUnknown
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitors SET is_active=$2, current_status=$3 WHERE id=$1`,
		string(id), active, string(status))
	return expectOne("set monitor active", tag, err)
}

func (s *Store) UpdateMonitorStatus(ctx context.Context, id domain.MonitorID, u repo.StatusUpdate) error {
	var status *string
	if u.Status != nil {
		v := string(*u.Status)
		status = &v
	}
	var active bool
	err := s.pool.QueryRow(ctx,
		`UPDATE monitors
		    SET last_checked_at = $2,
		        current_status = CASE WHEN is_active THEN COALESCE($3, current_status) ELSE current_status END,
		        last_status_change_at = CASE WHEN is_active THEN COALESCE($4, last_status_change_at) ELSE last_status_change_at END
		  WHERE id = $1
		RETURNING is_active`,
		string(id), u.LastCheckedAt, status, u.LastStatusChangeAt).Scan(&active)
	if err != nil {
		return wrap("update monitor status", err)
	}
	if !active && u.Status != nil {
		return fmt.Errorf("update monitor status: %w", repo.ErrInactive)
	}
	return nil
}
