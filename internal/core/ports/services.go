package ports

import (
	"context"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// RouteCallback receives the outcome of an asynchronous directions request.
// Exactly one of the two methods is called per request.
type RouteCallback interface {
	OnRouteResponse(ctx context.Context, resp *domain.DirectionsResponse)
	OnRouteFailure(ctx context.Context, err error)
}

// RouteCallbackFuncs adapts a pair of functions to RouteCallback.
type RouteCallbackFuncs struct {
	OnResponse func(ctx context.Context, resp *domain.DirectionsResponse)
	OnFailure  func(ctx context.Context, err error)
}

func (f RouteCallbackFuncs) OnRouteResponse(ctx context.Context, resp *domain.DirectionsResponse) {
	if f.OnResponse != nil {
		f.OnResponse(ctx, resp)
	}
}

func (f RouteCallbackFuncs) OnRouteFailure(ctx context.Context, err error) {
	if f.OnFailure != nil {
		f.OnFailure(ctx, err)
	}
}

// DirectionsClient submits route requests to a remote directions service.
// GetRoute must not block on the network; the result arrives via cb.
type DirectionsClient interface {
	GetRoute(ctx context.Context, req *domain.RouteRequest, cb RouteCallback)
}

// OfflineRouter resolves routes against a locally cached road network.
type OfflineRouter interface {
	FindOfflineRoute(ctx context.Context, req *domain.RouteRequest, cb RouteCallback)
}

// RouteSlot is the observable "current route" holder read by the UI layer.
type RouteSlot interface {
	Set(route *domain.DirectionsRoute)
	Get() (*domain.DirectionsRoute, bool)
}

// EventPublisher publishes route updates to a message broker.
type EventPublisher interface {
	PublishRoute(ctx context.Context, sessionID string, route *domain.DirectionsRoute) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
