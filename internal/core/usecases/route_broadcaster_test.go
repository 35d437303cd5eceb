package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/usecases"
	"github.com/samirrijal/routefinder/internal/pkg/observable"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	published []*domain.DirectionsRoute
	sessions  []string
	err       error
}

func (m *mockPublisher) PublishRoute(ctx context.Context, sessionID string, route *domain.DirectionsRoute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, route)
	m.sessions = append(m.sessions, sessionID)
	return m.err
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
	err  error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte), ttls: make(map[string]int)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, errors.New("valkey nil message")
	}
	return b, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestRouteBroadcaster_Broadcast(t *testing.T) {
	pub := &mockPublisher{}
	cache := newMockCache()
	b := usecases.NewRouteBroadcaster("dev-1", pub, cache, 600)

	route := &domain.DirectionsRoute{Distance: 1500, Duration: 240, WeightName: "auto"}
	b.Broadcast(route)

	if pub.count() != 1 || pub.sessions[0] != "dev-1" {
		t.Fatalf("expected one publish for dev-1, got %v", pub.sessions)
	}
	if cache.ttls[usecases.SnapshotKey("dev-1")] != 600 {
		t.Errorf("expected ttl 600, got %d", cache.ttls[usecases.SnapshotKey("dev-1")])
	}

	latest, err := b.Latest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Distance != 1500 || latest.WeightName != "auto" {
		t.Errorf("unexpected snapshot %+v", latest)
	}
}

func TestRouteBroadcaster_SinkErrorsAreSwallowed(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats: no responders")}
	cache := newMockCache()
	cache.err = errors.New("valkey down")
	b := usecases.NewRouteBroadcaster("dev-1", pub, cache, 60)

	b.Broadcast(&domain.DirectionsRoute{Distance: 1})

	if pub.count() != 1 {
		t.Errorf("expected publish attempt, got %d", pub.count())
	}
	if _, err := b.Latest(context.Background()); err == nil {
		t.Error("expected miss after failed cache write")
	}
}

func TestRouteBroadcaster_NilSinks(t *testing.T) {
	b := usecases.NewRouteBroadcaster("dev-1", nil, nil, 60)
	b.Broadcast(&domain.DirectionsRoute{Distance: 1})

	if _, err := b.Latest(context.Background()); err == nil {
		t.Error("expected error without cache")
	}
}

func TestRouteBroadcaster_AttachFollowsSlot(t *testing.T) {
	pub := &mockPublisher{}
	b := usecases.NewRouteBroadcaster("dev-1", pub, nil, 60)
	slot := observable.New[*domain.DirectionsRoute]()

	cancel := b.Attach(slot)
	defer cancel()

	slot.Set(&domain.DirectionsRoute{Distance: 7})

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.count() != 1 {
		t.Fatalf("expected route to be broadcast, got %d publishes", pub.count())
	}
}
