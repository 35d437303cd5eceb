package http

import (
	"context"
	"sync"
	"testing"
	"time"

	natsadapter "github.com/samirrijal/routefinder/internal/adapters/nats"
	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
	"github.com/samirrijal/routefinder/internal/core/usecases"
	"github.com/samirrijal/routefinder/internal/pkg/observable"
)

type nopDirections struct{}

func (nopDirections) GetRoute(context.Context, *domain.RouteRequest, ports.RouteCallback) {}

func TestSessionFilter(t *testing.T) {
	var f sessionFilter
	if !f.Match("car-1") || !f.Match("car-2") {
		t.Fatal("empty filter must match every session")
	}

	f.Set("car-1")
	if !f.Match("car-1") {
		t.Error("expected car-1 to match")
	}
	if f.Match("car-2") {
		t.Error("expected car-2 to be filtered out")
	}

	f.Set("")
	if !f.Match("car-2") {
		t.Error("expected reset filter to match car-2")
	}
}

func TestSubscribeRoutes_SlotFallback(t *testing.T) {
	slot := observable.New[*domain.DirectionsRoute]()
	deps := &Dependencies{
		Finder: usecases.NewRouteFinder(domain.NavigationSession{ID: "car-1", Profile: "driving"}, nopDirections{}, slot, "pk.test"),
		Slot:   slot,
	}

	updates := make(chan *natsadapter.RouteUpdate, 4)
	stop, err := subscribeRoutes(context.Background(), deps, func(_ context.Context, u *natsadapter.RouteUpdate) error {
		updates <- u
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	route := &domain.DirectionsRoute{Distance: 1520}
	slot.Set(route)

	select {
	case u := <-updates:
		if u.SessionID != "car-1" || u.Route != route {
			t.Errorf("unexpected update %+v", u)
		}
		if u.PublishedAt.IsZero() {
			t.Error("expected publish time")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update relayed from slot")
	}

	stop()
	if slot.Subscribers() != 0 {
		t.Errorf("expected stop to detach from slot, %d subscribers left", slot.Subscribers())
	}
}

func TestSubscribeRoutes_FilteredDelivery(t *testing.T) {
	slot := observable.New[*domain.DirectionsRoute]()
	deps := &Dependencies{
		Finder: usecases.NewRouteFinder(domain.NavigationSession{ID: "car-1", Profile: "driving"}, nopDirections{}, slot, "pk.test"),
		Slot:   slot,
	}

	var f sessionFilter
	f.Set("car-2")

	var mu sync.Mutex
	delivered := 0
	seen := make(chan struct{}, 4)
	stop, err := subscribeRoutes(context.Background(), deps, func(_ context.Context, u *natsadapter.RouteUpdate) error {
		if f.Match(u.SessionID) {
			mu.Lock()
			delivered++
			mu.Unlock()
		}
		seen <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	slot.Set(&domain.DirectionsRoute{Distance: 1})
	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("no update relayed from slot")
	}

	mu.Lock()
	defer mu.Unlock()
	if delivered != 0 {
		t.Errorf("expected car-1 update filtered out for car-2 client, delivered %d", delivered)
	}
}

func TestSubscribeRoutes_NothingConfigured(t *testing.T) {
	stop, err := subscribeRoutes(context.Background(), &Dependencies{}, func(context.Context, *natsadapter.RouteUpdate) error {
		t.Fatal("unexpected delivery")
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	stop()
}
