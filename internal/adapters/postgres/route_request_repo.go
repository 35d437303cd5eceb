package postgres

import (
	"context"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// RouteRequestRepo implements ports.RouteRequestRepository.
type RouteRequestRepo struct {
	db *DB
}

func NewRouteRequestRepo(db *DB) *RouteRequestRepo { return &RouteRequestRepo{db: db} }

func (r *RouteRequestRepo) Insert(ctx context.Context, e *domain.RouteRequestLog) error {
	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO route_requests (
			session_id, origin_lat, origin_lon, bearing, dest_lat, dest_lon,
			outcome, error, distance_m, duration_s, requested_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, e.SessionID, e.Origin.Lat, e.Origin.Lon, e.Bearing, e.Destination.Lat, e.Destination.Lon,
		string(e.Outcome), errText, e.Distance, e.Duration, e.RequestedAt, e.CompletedAt,
	).Scan(&e.ID)
}

func (r *RouteRequestRepo) ListRecent(ctx context.Context, sessionID string, limit int) ([]domain.RouteRequestLog, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, session_id, origin_lat, origin_lon, bearing, dest_lat, dest_lon,
		       outcome, COALESCE(error, ''), distance_m, duration_s, requested_at, completed_at
		FROM route_requests
		WHERE session_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RouteRequestLog
	for rows.Next() {
		var e domain.RouteRequestLog
		var outcome string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Origin.Lat, &e.Origin.Lon, &e.Bearing,
			&e.Destination.Lat, &e.Destination.Lon, &outcome, &e.Error,
			&e.Distance, &e.Duration, &e.RequestedAt, &e.CompletedAt); err != nil {
			return nil, err
		}
		e.Outcome = domain.RouteOutcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
