// Package sqlite is an embedded Store for single-binary deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var _ repo.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// New opens path and applies the schema.
func New(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New open: %w", err)
	}
	// one writer at a time keeps SQLITE_BUSY out of concurrent checks
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS monitors (
	id                     TEXT PRIMARY KEY,
	name                   TEXT NOT NULL,
	url                    TEXT NOT NULL,
	method                 TEXT NOT NULL,
	expected_status        INTEGER NOT NULL,
	check_interval_seconds INTEGER NOT NULL,
	timeout_seconds        INTEGER NOT NULL,
	check_kind             TEXT NOT NULL,
	is_active              INTEGER NOT NULL,
	current_status         TEXT NOT NULL,
	last_checked_at        TEXT,
	last_status_change_at  TEXT,
	created_at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checks (
	id               TEXT PRIMARY KEY,
	monitor_id       TEXT NOT NULL,
	status_code      INTEGER,
	response_time_ms INTEGER,
	is_up            INTEGER NOT NULL,
	error_message    TEXT,
	checked_at       TEXT NOT NULL,
	FOREIGN KEY(monitor_id) REFERENCES monitors(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_checks_monitor_time ON checks (monitor_id, checked_at DESC);

CREATE TABLE IF NOT EXISTS incidents (
	id               TEXT PRIMARY KEY,
	monitor_id       TEXT NOT NULL,
	started_at       TEXT NOT NULL,
	resolved_at      TEXT,
	duration_seconds INTEGER,
	is_resolved      INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY(monitor_id) REFERENCES monitors(id) ON DELETE CASCADE
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_incidents_one_open ON incidents (monitor_id) WHERE is_resolved = 0;

CREATE TABLE IF NOT EXISTS alert_configs (
	id          TEXT PRIMARY KEY,
	monitor_id  TEXT NOT NULL,
	channel     TEXT NOT NULL,
	destination TEXT NOT NULL,
	is_active   INTEGER NOT NULL,
	FOREIGN KEY(monitor_id) REFERENCES monitors(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS alert_history (
	id              TEXT PRIMARY KEY,
	alert_config_id TEXT NOT NULL,
	monitor_id      TEXT NOT NULL,
	channel         TEXT NOT NULL,
	message         TEXT NOT NULL,
	was_successful  INTEGER NOT NULL,
	sent_at         TEXT NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func wrap(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repo.ErrNotFound)
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%s: %w", op, repo.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectOne(op string, res sql.Result, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, repo.ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// ---- MonitorStore ----

const monitorColumns = `id, name, url, method, expected_status, check_interval_seconds, timeout_seconds,
	check_kind, is_active, current_status, last_checked_at, last_status_change_at, created_at`

type scanner interface{ Scan(dest ...any) error }

func scanMonitor(row scanner) (domain.Monitor, error) {
	var (
		m                     domain.Monitor
		id, kind, status      string
		lastChecked, lastChng sql.NullString
		created               string
	)
	err := row.Scan(&id, &m.Name, &m.URL, &m.Method, &m.ExpectedStatus, &m.IntervalSeconds, &m.TimeoutSeconds,
		&kind, &m.IsActive, &status, &lastChecked, &lastChng, &created)
	m.ID = domain.MonitorID(id)
	m.Kind = domain.CheckKind(kind)
	m.CurrentStatus = domain.Status(status)
	m.LastCheckedAt = parseTimePtr(lastChecked)
	m.LastStatusChangeAt = parseTimePtr(lastChng)
	m.CreatedAt = parseTime(created)
	return m, err
}

func (s *Store) queryMonitors(ctx context.Context, op, q string) ([]domain.Monitor, error) {
	rows, err := s.db.QueryContext(ctx, q)
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
		`SELECT `+monitorColumns+` FROM monitors WHERE is_active = 1 ORDER BY created_at, id`)
}

func (s *Store) ListMonitors(ctx context.Context) ([]domain.Monitor, error) {
	return s.queryMonitors(ctx, "list monitors", `SELECT `+monitorColumns+` FROM monitors ORDER BY created_at, id`)
}

func (s *Store) GetMonitor(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error) {
	m, err := scanMonitor(s.db.QueryRowContext(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = ?`, string(id)))
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitors (`+monitorColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		string(m.ID), m.Name, m.URL, m.Method, m.ExpectedStatus, m.IntervalSeconds, m.TimeoutSeconds,
		string(m.Kind), m.IsActive, string(m.CurrentStatus),
		formatTimePtr(m.LastCheckedAt), formatTimePtr(m.LastStatusChangeAt), formatTime(m.CreatedAt))
	if err != nil {
		return wrap("insert monitor", err)
	}
	return nil
}

func (s *Store) UpdateMonitorSettings(ctx context.Context, m *domain.Monitor) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors
		    SET name=?, url=?, method=?, expected_status=?, check_interval_seconds=?, timeout_seconds=?, check_kind=?
		  WHERE id=?`,
		m.Name, m.URL, m.Method, m.ExpectedStatus, m.IntervalSeconds, m.TimeoutSeconds, string(m.Kind), string(m.ID))
	return expectOne("update monitor settings", res, err)
}

func (s *Store) SetMonitorActive(ctx context.Context, id domain.MonitorID, active bool) error {
	status := domain.StatusPaused
	if active {
		status = domain.StatusUnknown
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET is_active=?, current_status=? WHERE id=?`, active, string(status), string(id))
	return expectOne("set monitor active", res, err)
}

func (s *Store) UpdateMonitorStatus(ctx context.Context, id domain.MonitorID, u repo.StatusUpdate) error {
	var status any
	if u.Status != nil {
		status = string(*u.Status)
	}
	var active bool
	err := s.db.QueryRowContext(ctx,
		`UPDATE monitors
		    SET last_checked_at = ?,
		        current_status = CASE WHEN is_active THEN COALESCE(?, current_status) ELSE current_status END,
		        last_status_change_at = CASE WHEN is_active THEN COALESCE(?, last_status_change_at) ELSE last_status_change_at END
		  WHERE id = ?
		RETURNING is_active`,
		formatTime(u.LastCheckedAt), status, formatTimePtr(u.LastStatusChangeAt), string(id)).Scan(&active)
	if err != nil {
		return wrap("update monitor status", err)
	}
	if !active && u.Status != nil {
		return fmt.Errorf("update monitor status: %w", repo.ErrInactive)
	}
	return nil
}

// ---- CheckStore ----

func (s *Store) InsertCheck(ctx context.Context, c *domain.Check) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CheckedAt.IsZero() {
		c.CheckedAt = time.Now().UTC()
	}
	var msg any
	if c.ErrorMessage != "" {
		msg = c.ErrorMessage
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checks (id, monitor_id, status_code, response_time_ms, is_up, error_message, checked_at)
		 VALUES (?,?,?,?,?,?,?)`,
		c.ID, string(c.MonitorID), c.StatusCode, c.ResponseTimeMS, c.IsUp, msg, formatTime(c.CheckedAt))
	if err != nil {
		return wrap("insert check", err)
	}
	return nil
}

func (s *Store) RecentChecks(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Check, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status_code, response_time_ms, is_up, error_message, checked_at
		   FROM checks WHERE monitor_id = ? ORDER BY checked_at DESC LIMIT ?`, string(id), limit)
	if err != nil {
		return nil, wrap("recent checks", err)
	}
	defer rows.Close()
	var out []domain.Check
	for rows.Next() {
		var (
			c           domain.Check
			code, ms    sql.NullInt64
			msg         sql.NullString
			checkedAtTS string
		)
		if err := rows.Scan(&c.ID, &code, &ms, &c.IsUp, &msg, &checkedAtTS); err != nil {
			return nil, wrap("scan check", err)
		}
		c.MonitorID = id
		c.StatusCode = intPtr(code)
		c.ResponseTimeMS = intPtr(ms)
		c.ErrorMessage = msg.String
		c.CheckedAt = parseTime(checkedAtTS)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountChecks(ctx context.Context, id domain.MonitorID, since time.Time) (int, int, error) {
	var total int
	var up sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), sum(is_up) FROM checks WHERE monitor_id = ? AND checked_at >= ?`,
		string(id), formatTime(since)).Scan(&total, &up)
	if err != nil {
		return 0, 0, wrap("count checks", err)
	}
	return total, int(up.Int64), nil
}

// ---- IncidentStore ----

func (s *Store) queryIncidents(ctx context.Context, op, q string, args ...any) ([]domain.Incident, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()
	var out []domain.Incident
	for rows.Next() {
		var (
			in       domain.Incident
			mid      string
			started  string
			resolved sql.NullString
			dur      sql.NullInt64
		)
		if err := rows.Scan(&in.ID, &mid, &started, &resolved, &dur, &in.IsResolved); err != nil {
			return nil, wrap(op+" scan", err)
		}
		in.MonitorID = domain.MonitorID(mid)
		in.StartedAt = parseTime(started)
		in.ResolvedAt = parseTimePtr(resolved)
		if dur.Valid {
			d := dur.Int64
			in.DurationSeconds = &d
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) OpenIncidents(ctx context.Context, id domain.MonitorID) ([]domain.Incident, error) {
	return s.queryIncidents(ctx, "open incidents",
		`SELECT id, monitor_id, started_at, resolved_at, duration_seconds, is_resolved
		   FROM incidents WHERE monitor_id = ? AND is_resolved = 0 ORDER BY started_at`, string(id))
}

func (s *Store) ListIncidents(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryIncidents(ctx, "list incidents",
		`SELECT id, monitor_id, started_at, resolved_at, duration_seconds, is_resolved
		   FROM incidents WHERE monitor_id = ? ORDER BY started_at DESC LIMIT ?`, string(id), limit)
}

func (s *Store) InsertIncident(ctx context.Context, in *domain.Incident) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incidents (id, monitor_id, started_at, resolved_at, duration_seconds, is_resolved)
		 VALUES (?,?,?,?,?,?)`,
		in.ID, string(in.MonitorID), formatTime(in.StartedAt), formatTimePtr(in.ResolvedAt), in.DurationSeconds, in.IsResolved)
	if err != nil {
		return wrap("insert incident", err)
	}
	return nil
}

func (s *Store) UpdateIncident(ctx context.Context, incidentID string, u repo.IncidentUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET resolved_at=?, duration_seconds=?, is_resolved=1 WHERE id=?`,
		formatTime(u.ResolvedAt), u.DurationSeconds, incidentID)
	return expectOne("update incident", res, err)
}

// ---- AlertStore ----

func (s *Store) ActiveAlertConfigs(ctx context.Context, id domain.MonitorID) ([]domain.AlertConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, destination, is_active FROM alert_configs
		  WHERE monitor_id = ? AND is_active = 1 ORDER BY id`, string(id))
	if err != nil {
		return nil, wrap("active alert configs", err)
	}
	defer rows.Close()
	var out []domain.AlertConfig
	for rows.Next() {
		c := domain.AlertConfig{MonitorID: id}
		var channel string
		if err := rows.Scan(&c.ID, &channel, &c.Destination, &c.IsActive); err != nil {
			return nil, wrap("scan alert config", err)
		}
		c.Channel = domain.Channel(channel)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SaveAlertConfig(ctx context.Context, c *domain.AlertConfig) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_configs (id, monitor_id, channel, destination, is_active)
		 VALUES (?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET channel=excluded.channel, destination=excluded.destination, is_active=excluded.is_active`,
		c.ID, string(c.MonitorID), string(c.Channel), c.Destination, c.IsActive)
	if err != nil {
		return wrap("save alert config", err)
	}
	return nil
}

func (s *Store) InsertAlertHistory(ctx context.Context, h *domain.AlertHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.SentAt.IsZero() {
		h.SentAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_history (id, alert_config_id, monitor_id, channel, message, was_successful, sent_at)
		 VALUES (?,?,?,?,?,?,?)`,
		h.ID, h.AlertConfigID, string(h.MonitorID), string(h.Channel), h.Message, h.WasSuccessful, formatTime(h.SentAt))
	if err != nil {
		return wrap("insert alert history", err)
	}
	return nil
}
