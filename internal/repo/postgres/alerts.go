package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/statuspulse/internal/domain"
)

func (s *Store) ActiveAlertConfigs(ctx context.Context, id domain.MonitorID) ([]domain.AlertConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, channel, destination, is_active
		   FROM alert_configs
		  WHERE monitor_id = $1 AND is_active
		  ORDER BY id`, string(id))
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_configs (id, monitor_id, channel, destination, is_active)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id)
		 DO UPDATE SET channel=EXCLUDED.channel, destination=EXCLUDED.destination, is_active=EXCLUDED.is_active`,
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_history (id, alert_config_id, monitor_id, channel, message, was_successful, sent_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		h.ID, h.AlertConfigID, string(h.MonitorID), string(h.Channel), h.Message, h.WasSuccessful, h.SentAt)
	if err != nil {
		return wrap("insert alert history", err)
	}
	return nil
}
