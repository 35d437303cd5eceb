package usecases_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
	"github.com/samirrijal/routefinder/internal/core/usecases"
	"github.com/samirrijal/routefinder/internal/pkg/observable"
)

// --- Mock DirectionsClient ---

type pendingCall struct {
	ctx context.Context
	req *domain.RouteRequest
	cb  ports.RouteCallback
}

type mockDirections struct {
	mu    sync.Mutex
	calls []pendingCall
}

func (m *mockDirections) GetRoute(ctx context.Context, req *domain.RouteRequest, cb ports.RouteCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, pendingCall{ctx: ctx, req: req, cb: cb})
}

func (m *mockDirections) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockDirections) call(t *testing.T, i int) pendingCall {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.calls) {
		t.Fatalf("expected at least %d outbound requests, got %d", i+1, len(m.calls))
	}
	return m.calls[i]
}

// --- Mock OfflineRouter ---

type mockOffline struct {
	fn func(ctx context.Context, req *domain.RouteRequest, cb ports.RouteCallback)
}

func (m *mockOffline) FindOfflineRoute(ctx context.Context, req *domain.RouteRequest, cb ports.RouteCallback) {
	m.fn(ctx, req, cb)
}

// --- Mock RouteRequestRepository ---

type mockJournal struct {
	mu       sync.Mutex
	entries  []domain.RouteRequestLog
	err      error
	insertFn func(ctx context.Context) error
}

func (m *mockJournal) Insert(ctx context.Context, e *domain.RouteRequestLog) error {
	if m.insertFn != nil {
		if err := m.insertFn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return m.err
}

func (m *mockJournal) ListRecent(ctx context.Context, sessionID string, limit int) ([]domain.RouteRequestLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, nil
}

// --- Counting slog handler ---

type countingHandler struct {
	mu     sync.Mutex
	counts map[slog.Level]int
}

func newCountingHandler() *countingHandler {
	return &countingHandler{counts: make(map[slog.Level]int)}
}

func (h *countingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h *countingHandler) WithGroup(string) slog.Handler            { return h }
func (h *countingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[r.Level]++
	return nil
}

func (h *countingHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[level]
}

// --- Helpers ---

var (
	sfPosition    = domain.Position{Lon: -122.42, Lat: 37.77, Bearing: 45.0}
	sfDestination = domain.GeoPoint{Lon: -122.41, Lat: 37.78}
	testSession   = domain.NavigationSession{ID: "dev-1", Profile: "driving-traffic", Language: "en"}
)

func newFinder(t *testing.T, opts ...usecases.RouteFinderOption) (*usecases.RouteFinder, *mockDirections, *observable.Value[*domain.DirectionsRoute]) {
	t.Helper()
	dir := &mockDirections{}
	slot := observable.New[*domain.DirectionsRoute]()
	opts = append([]usecases.RouteFinderOption{usecases.WithLogger(slog.New(newCountingHandler()))}, opts...)
	return usecases.NewRouteFinder(testSession, dir, slot, "pk.test-token", opts...), dir, slot
}

func current(t *testing.T, slot *observable.Value[*domain.DirectionsRoute]) *domain.DirectionsRoute {
	t.Helper()
	r, _ := slot.Get()
	return r
}

// --- Tests ---

func TestRouteFinder_FindRoute_BuildsRequest(t *testing.T) {
	finder, dir, _ := newFinder(t)

	if err := finder.FindRoute(context.Background(), sfPosition, sfDestination); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.count() != 1 {
		t.Fatalf("expected 1 outbound request, got %d", dir.count())
	}

	req := dir.call(t, 0).req
	if req.OriginBearing != 45.0 {
		t.Errorf("expected bearing 45.0, got %v", req.OriginBearing)
	}
	if req.BearingTolerance != 90.0 {
		t.Errorf("expected tolerance 90.0, got %v", req.BearingTolerance)
	}
	if req.Origin != (domain.GeoPoint{Lon: -122.42, Lat: 37.77}) {
		t.Errorf("unexpected origin %+v", req.Origin)
	}
	if req.Destination != sfDestination {
		t.Errorf("unexpected destination %+v", req.Destination)
	}
	if req.AccessToken != "pk.test-token" {
		t.Errorf("expected token to pass through unchanged, got %q", req.AccessToken)
	}
	if req.Profile != "driving-traffic" || req.Language != "en" {
		t.Errorf("expected session profile/language, got %q/%q", req.Profile, req.Language)
	}
}

func TestRouteFinder_FindRoute_NoDeduplication(t *testing.T) {
	finder, dir, _ := newFinder(t)

	for i := 0; i < 3; i++ {
		if err := finder.FindRoute(context.Background(), sfPosition, sfDestination); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if dir.count() != 3 {
		t.Errorf("expected 3 outbound requests, got %d", dir.count())
	}
}

func TestRouteFinder_FindRoute_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		pos  domain.Position
		dest domain.GeoPoint
		want error
	}{
		{"negative bearing", domain.Position{Lat: 37.77, Lon: -122.42, Bearing: -1}, sfDestination, domain.ErrInvalidBearing},
		{"bearing 360", domain.Position{Lat: 37.77, Lon: -122.42, Bearing: 360}, sfDestination, domain.ErrInvalidBearing},
		{"origin lat", domain.Position{Lat: 91, Lon: -122.42, Bearing: 10}, sfDestination, domain.ErrInvalidCoordinate},
		{"destination lon", sfPosition, domain.GeoPoint{Lat: 37.78, Lon: 200}, domain.ErrInvalidCoordinate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder, dir, _ := newFinder(t)
			err := finder.FindRoute(context.Background(), tt.pos, tt.dest)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if dir.count() != 0 {
				t.Errorf("expected no outbound request, got %d", dir.count())
			}
		})
	}
}

func TestRouteFinder_PublishesFirstRoute(t *testing.T) {
	finder, dir, slot := newFinder(t)
	_ = finder.FindRoute(context.Background(), sfPosition, sfDestination)

	first := &domain.DirectionsRoute{Distance: 1500, Duration: 240}
	second := &domain.DirectionsRoute{Distance: 1200, Duration: 300}
	dir.call(t, 0).cb.OnRouteResponse(context.Background(), &domain.DirectionsResponse{
		Code:   "Ok",
		Routes: []*domain.DirectionsRoute{first, second},
	})

	if got := current(t, slot); got != first {
		t.Errorf("expected first route to be published, got %+v", got)
	}
}

func TestRouteFinder_EmptyResponse_KeepsSlot(t *testing.T) {
	tests := []struct {
		name string
		resp *domain.DirectionsResponse
	}{
		{"nil response", nil},
		{"absent routes", &domain.DirectionsResponse{Code: "NoRoute"}},
		{"empty routes", &domain.DirectionsResponse{Code: "Ok", Routes: []*domain.DirectionsRoute{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder, _, slot := newFinder(t)
			prior := &domain.DirectionsRoute{Distance: 42}
			slot.Set(prior)

			finder.OnRouteResponse(context.Background(), tt.resp)

			if got := current(t, slot); got != prior {
				t.Errorf("expected slot unchanged, got %+v", got)
			}
		})
	}
}

func TestRouteFinder_Failure_LogsOnceAndKeepsSlot(t *testing.T) {
	logs := newCountingHandler()
	finder, dir, slot := newFinder(t, usecases.WithLogger(slog.New(logs)))
	prior := &domain.DirectionsRoute{Distance: 42}
	slot.Set(prior)

	_ = finder.FindRoute(context.Background(), sfPosition, sfDestination)
	dir.call(t, 0).cb.OnRouteFailure(context.Background(), errors.New("dial tcp: i/o timeout"))

	if got := current(t, slot); got != prior {
		t.Errorf("expected slot unchanged, got %+v", got)
	}
	if n := logs.count(slog.LevelError); n != 1 {
		t.Errorf("expected exactly 1 error log, got %d", n)
	}
	if dir.count() != 1 {
		t.Errorf("expected no retry, got %d requests", dir.count())
	}
}

// Responses are applied in arrival order, not request order. This encodes the
// documented last-callback-wins behavior.
func TestRouteFinder_OutOfOrderResponses_LastCallbackWins(t *testing.T) {
	finder, dir, slot := newFinder(t)

	_ = finder.FindRoute(context.Background(), sfPosition, sfDestination) // A
	_ = finder.FindRoute(context.Background(), sfPosition, sfDestination) // B

	routeA := &domain.DirectionsRoute{Distance: 1}
	routeB := &domain.DirectionsRoute{Distance: 2}

	dir.call(t, 1).cb.OnRouteResponse(context.Background(), &domain.DirectionsResponse{Routes: []*domain.DirectionsRoute{routeB}})
	if got := current(t, slot); got != routeB {
		t.Fatalf("expected B after first callback, got %+v", got)
	}

	dir.call(t, 0).cb.OnRouteResponse(context.Background(), &domain.DirectionsResponse{Routes: []*domain.DirectionsRoute{routeA}})
	if got := current(t, slot); got != routeA {
		t.Errorf("expected stale A to overwrite B, got %+v", got)
	}
}

func TestRouteFinder_Offline_Disabled(t *testing.T) {
	finder, dir, slot := newFinder(t)
	prior := &domain.DirectionsRoute{Distance: 42}
	slot.Set(prior)

	err := finder.FindOfflineRoute(context.Background(), sfPosition, sfDestination)
	if !errors.Is(err, domain.ErrOfflineRoutingDisabled) {
		t.Fatalf("expected ErrOfflineRoutingDisabled, got %v", err)
	}
	if dir.count() != 0 {
		t.Errorf("expected no outbound request, got %d", dir.count())
	}
	if got := current(t, slot); got != prior {
		t.Errorf("expected slot unchanged, got %+v", got)
	}
}

func TestRouteFinder_OfflineSession_UsesOfflinePath(t *testing.T) {
	dir := &mockDirections{}
	slot := observable.New[*domain.DirectionsRoute]()
	session := testSession
	session.Offline = true

	finder := usecases.NewRouteFinder(session, dir, slot, "pk.test-token")
	err := finder.FindRoute(context.Background(), sfPosition, sfDestination)
	if !errors.Is(err, domain.ErrOfflineRoutingDisabled) {
		t.Fatalf("expected ErrOfflineRoutingDisabled, got %v", err)
	}
	if dir.count() != 0 {
		t.Errorf("expected no outbound request, got %d", dir.count())
	}
}

func TestRouteFinder_OfflineRouter_PublishesThroughSlot(t *testing.T) {
	offlineRoute := &domain.DirectionsRoute{Distance: 900}
	var gotReq *domain.RouteRequest
	offline := &mockOffline{fn: func(ctx context.Context, req *domain.RouteRequest, cb ports.RouteCallback) {
		gotReq = req
		cb.OnRouteResponse(ctx, &domain.DirectionsResponse{Routes: []*domain.DirectionsRoute{offlineRoute}})
	}}

	finder, dir, slot := newFinder(t, usecases.WithOfflineRouter(offline))
	if err := finder.FindOfflineRoute(context.Background(), sfPosition, sfDestination); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.count() != 0 {
		t.Errorf("expected no remote request, got %d", dir.count())
	}
	if gotReq == nil || gotReq.BearingTolerance != 90.0 {
		t.Errorf("expected offline request with tolerance 90, got %+v", gotReq)
	}
	if got := current(t, slot); got != offlineRoute {
		t.Errorf("expected offline route published, got %+v", got)
	}
}

func TestRouteFinder_Journal(t *testing.T) {
	journal := &mockJournal{}
	finder, dir, _ := newFinder(t, usecases.WithJournal(journal))

	_ = finder.FindRoute(context.Background(), sfPosition, sfDestination)
	_ = finder.FindRoute(context.Background(), sfPosition, sfDestination)
	_ = finder.FindRoute(context.Background(), sfPosition, sfDestination)

	dir.call(t, 0).cb.OnRouteResponse(context.Background(), &domain.DirectionsResponse{
		Routes: []*domain.DirectionsRoute{{Distance: 1500, Duration: 240}},
	})
	dir.call(t, 1).cb.OnRouteResponse(context.Background(), &domain.DirectionsResponse{})
	dir.call(t, 2).cb.OnRouteFailure(context.Background(), errors.New("boom"))

	if len(journal.entries) != 3 {
		t.Fatalf("expected 3 journal entries, got %d", len(journal.entries))
	}

	published := journal.entries[0]
	if published.Outcome != domain.OutcomePublished {
		t.Errorf("expected published, got %s", published.Outcome)
	}
	if published.Distance == nil || *published.Distance != 1500 {
		t.Errorf("expected distance 1500, got %v", published.Distance)
	}
	if published.SessionID != "dev-1" || published.Bearing != 45.0 {
		t.Errorf("unexpected entry %+v", published)
	}
	if journal.entries[1].Outcome != domain.OutcomeEmpty {
		t.Errorf("expected empty, got %s", journal.entries[1].Outcome)
	}
	failed := journal.entries[2]
	if failed.Outcome != domain.OutcomeFailed || failed.Error != "boom" {
		t.Errorf("expected failed/boom, got %s/%s", failed.Outcome, failed.Error)
	}
}

func TestRouteFinder_JournalError_DoesNotAffectSlot(t *testing.T) {
	journal := &mockJournal{err: errors.New("db down")}
	finder, dir, slot := newFinder(t, usecases.WithJournal(journal))

	_ = finder.FindRoute(context.Background(), sfPosition, sfDestination)
	route := &domain.DirectionsRoute{Distance: 10}
	dir.call(t, 0).cb.OnRouteResponse(context.Background(), &domain.DirectionsResponse{Routes: []*domain.DirectionsRoute{route}})

	if got := current(t, slot); got != route {
		t.Errorf("expected route published despite journal error, got %+v", got)
	}
}

func TestRouteFinder_JournalWriteIsBounded(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	journal := &mockJournal{insertFn: func(ctx context.Context) error {
		deadline, hasDeadline = ctx.Deadline()
		return nil
	}}
	finder, dir, _ := newFinder(t, usecases.WithJournal(journal))

	_ = finder.FindRoute(context.Background(), sfPosition, sfDestination)
	// Callbacks arrive on a context that never expires.
	dir.call(t, 0).cb.OnRouteFailure(context.WithoutCancel(context.Background()), errors.New("boom"))

	if !hasDeadline {
		t.Fatal("expected journal insert to run with a deadline")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > 10*time.Second {
		t.Errorf("unexpected journal deadline, %s remaining", remaining)
	}
}
