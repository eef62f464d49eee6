package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/statuspulse/internal/domain"
)

func (s *Store) InsertCheck(ctx context.Context, c *domain.Check) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CheckedAt.IsZero() {
		c.CheckedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checks (id, monitor_id, status_code, response_time_ms, is_up, error_message, checked_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, string(c.MonitorID), c.StatusCode, c.ResponseTimeMS, c.IsUp, nullString(c.ErrorMessage), c.CheckedAt)
	if err != nil {
		return wrap("insert check", err)
	}
	return nil
}

func (s *Store) RecentChecks(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Check, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status_code, response_time_ms, is_up, error_message, checked_at
		   FROM checks
		  WHERE monitor_id = $1
		  ORDER BY checked_at DESC
		  LIMIT $2`, string(id), limit)
	if err != nil {
		return nil, wrap("recent checks", err)
	}
	defer rows.Close()

	var out []domain.Check
	for rows.Next() {
		var (
			c        domain.Check
			httpNull sql.NullInt32
			msg      *string
		)
		if err := rows.Scan(&c.ID, &httpNull, &c.ResponseTimeMS, &c.IsUp, &msg, &c.CheckedAt); err != nil {
			return nil, wrap("scan check", err)
		}
		if httpNull.Valid {
			v := int(httpNull.Int32)
			c.StatusCode = &v
		}
		if msg != nil {
			c.ErrorMessage = *msg
		}
		c.MonitorID = id
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountChecks(ctx context.Context, id domain.MonitorID, since time.Time) (int, int, error) {
	var total, up int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE is_up)
		   FROM checks
		  WHERE monitor_id = $1 AND checked_at >= $2`, string(id), since).Scan(&total, &up)
	if err != nil {
		return 0, 0, wrap("count checks", err)
	}
	return total, up, nil
}
