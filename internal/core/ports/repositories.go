package ports

import (
	"context"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// RouteRequestRepository journals completed route requests.
type RouteRequestRepository interface {
	Insert(ctx context.Context, entry *domain.RouteRequestLog) error
	ListRecent(ctx context.Context, sessionID string, limit int) ([]domain.RouteRequestLog, error)
}
