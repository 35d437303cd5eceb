package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
	"github.com/samirrijal/routefinder/internal/pkg/metrics"
)

// routeSubscriber is satisfied by *observable.Value[*domain.DirectionsRoute].
type routeSubscriber interface {
	Subscribe(fn func(*domain.DirectionsRoute)) (cancel func())
}

// RouteBroadcaster fans published routes out to the message broker and a
// cache snapshot so that late readers and other processes can see them.
type RouteBroadcaster struct {
	sessionID string
	publisher ports.EventPublisher
	cache     ports.CacheService
	ttl       int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRouteBroadcaster creates a new RouteBroadcaster. publisher and cache may be nil.
func NewRouteBroadcaster(sessionID string, publisher ports.EventPublisher, cache ports.CacheService, ttlSeconds int) *RouteBroadcaster {
	return &RouteBroadcaster{
		sessionID: sessionID,
		publisher: publisher,
		cache:     cache,
		ttl:       ttlSeconds,
		timeout:   5 * time.Second,
		logger:    slog.Default(),
	}
}

// SnapshotKey is the cache key holding the session's latest route.
func SnapshotKey(sessionID string) string {
	return "nav:route:" + sessionID
}

// Attach subscribes to slot until the returned cancel func is called.
func (b *RouteBroadcaster) Attach(slot routeSubscriber) (cancel func()) {
	return slot.Subscribe(b.Broadcast)
}

// Broadcast publishes route to every configured sink. Failures are logged
// and counted, never returned.
func (b *RouteBroadcaster) Broadcast(route *domain.DirectionsRoute) {
	if route == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if b.publisher != nil {
		if err := b.publisher.PublishRoute(ctx, b.sessionID, route); err != nil {
			metrics.BroadcastErrors.WithLabelValues("nats").Inc()
			b.logger.Warn("publish route", "session", b.sessionID, "error", err)
		}
	}

	if b.cache != nil {
		data, err := json.Marshal(route)
		if err != nil {
			b.logger.Warn("encode route snapshot", "error", err)
			return
		}
		if err := b.cache.Set(ctx, SnapshotKey(b.sessionID), data, b.ttl); err != nil {
			metrics.BroadcastErrors.WithLabelValues("cache").Inc()
			b.logger.Warn("store route snapshot", "session", b.sessionID, "error", err)
		}
	}
}

// Latest reads the last broadcast route back from the cache.
func (b *RouteBroadcaster) Latest(ctx context.Context) (*domain.DirectionsRoute, error) {
	if b.cache == nil {
		return nil, fmt.Errorf("no route cache configured")
	}
	data, err := b.cache.Get(ctx, SnapshotKey(b.sessionID))
	if err != nil {
		return nil, err
	}
	var route domain.DirectionsRoute
	if err := json.Unmarshal(data, &route); err != nil {
		return nil, fmt.Errorf("decode route snapshot: %w", err)
	}
	return &route, nil
}
