package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

func (s *Store) queryIncidents(ctx context.Context, op, q string, args ...any) ([]domain.Incident, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		var (
			in domain.Incident
			id string
		)
		if err := rows.Scan(&in.ID, &id, &in.StartedAt, &in.ResolvedAt, &in.DurationSeconds, &in.IsResolved); err != nil {
			return nil, wrap(op+" scan", err)
		}
		in.MonitorID = domain.MonitorID(id)
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) OpenIncidents(ctx context.Context, id domain.MonitorID) ([]domain.Incident, error) {
	return s.queryIncidents(ctx, "open incidents",
		`SELECT id, monitor_id, started_at, resolved_at, duration_seconds, is_resolved
		   FROM incidents
		  WHERE monitor_id = $1 AND NOT is_resolved
		  ORDER BY started_at`, string(id))
}

func (s *Store) ListIncidents(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryIncidents(ctx, "list incidents",
		`SELECT id, monitor_id, started_at, resolved_at, duration_seconds, is_resolved
		   FROM incidents
		  WHERE monitor_id = $1
		  ORDER BY started_at DESC
		  LIMIT $2`, string(id), limit)
}

func (s *Store) InsertIncident(ctx context.Context, in *domain.Incident) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO incidents (id, monitor_id, started_at, resolved_at, duration_seconds, is_resolved)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		in.ID, string(in.MonitorID), in.StartedAt, in.ResolvedAt, in.DurationSeconds, in.IsResolved)
	if err != nil {
		return wrap("insert incident", err)
	}
	return nil
}

func (s *Store) UpdateIncident(ctx context.Context, incidentID string, u repo.IncidentUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE incidents SET resolved_at=$2, duration_seconds=$3, is_resolved=TRUE WHERE id=$1`,
		incidentID, u.ResolvedAt, u.DurationSeconds)
	return expectOne("update incident", tag, err)
}
