package usecases

import (
	"context"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
)

// RouteHistoryService exposes the route request journal.
type RouteHistoryService struct {
	requests ports.RouteRequestRepository
}

// NewRouteHistoryService creates a new RouteHistoryService.
func NewRouteHistoryService(requests ports.RouteRequestRepository) *RouteHistoryService {
	return &RouteHistoryService{requests: requests}
}

// ListRecent returns the newest journal entries for a session, newest first.
func (s *RouteHistoryService) ListRecent(ctx context.Context, sessionID string, limit int) ([]domain.RouteRequestLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.requests.ListRecent(ctx, sessionID, limit)
}
