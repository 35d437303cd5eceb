package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
	"github.com/samirrijal/routefinder/internal/pkg/geospatial"
	"github.com/samirrijal/routefinder/internal/pkg/metrics"
)

// BearingTolerance is the allowed deviation, in degrees, between the device
// heading and the road segment the origin is snapped to.
const BearingTolerance = 90.0

// journalTimeout bounds a journal write so a stuck database cannot hold the
// directions callback goroutine.
const journalTimeout = 5 * time.Second

// RouteFinder asks the directions service for a route from the device's
// position to a destination and publishes the first route returned.
//
// Requests are fire-and-forget. Responses are not ordered: a slow response to
// an older request overwrites the route published for a newer one.
type RouteFinder struct {
	session     domain.NavigationSession
	directions  ports.DirectionsClient
	offline     ports.OfflineRouter
	slot        ports.RouteSlot
	accessToken string
	journal     ports.RouteRequestRepository
	logger      *slog.Logger
	now         func() time.Time
}

// RouteFinderOption configures optional collaborators.
type RouteFinderOption func(*RouteFinder)

// WithJournal records every completed request.
func WithJournal(repo ports.RouteRequestRepository) RouteFinderOption {
	return func(f *RouteFinder) { f.journal = repo }
}

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) RouteFinderOption {
	return func(f *RouteFinder) { f.logger = l }
}

// WithOfflineRouter enables FindOfflineRoute.
func WithOfflineRouter(r ports.OfflineRouter) RouteFinderOption {
	return func(f *RouteFinder) { f.offline = r }
}

// NewRouteFinder creates a new RouteFinder.
func NewRouteFinder(
	session domain.NavigationSession,
	directions ports.DirectionsClient,
	slot ports.RouteSlot,
	accessToken string,
	opts ...RouteFinderOption,
) *RouteFinder {
	f := &RouteFinder{
		session:     session,
		directions:  directions,
		slot:        slot,
		accessToken: accessToken,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Session returns the navigation session requests are built from.
func (f *RouteFinder) Session() domain.NavigationSession {
	return f.session
}

// FindRoute issues one route request and returns without waiting for it.
// The result, if any, is published to the route slot.
func (f *RouteFinder) FindRoute(ctx context.Context, pos domain.Position, dest domain.GeoPoint) error {
	if f.session.Offline {
		return f.FindOfflineRoute(ctx, pos, dest)
	}

	req, err := f.buildRequest(pos, dest)
	if err != nil {
		return err
	}

	f.logger.DebugContext(ctx, "requesting route",
		"session", f.session.ID,
		"profile", req.Profile,
		"bearing", req.OriginBearing,
		"straight_line_m", geospatial.Haversine(pos.Lat, pos.Lon, dest.Lat, dest.Lon),
	)
	metrics.DirectionsRequests.WithLabelValues(req.Profile).Inc()

	f.directions.GetRoute(ctx, req, f.callbackFor(req))
	return nil
}

// FindOfflineRoute resolves a route against a locally cached road network.
// Without an OfflineRouter it does nothing and returns
// domain.ErrOfflineRoutingDisabled.
func (f *RouteFinder) FindOfflineRoute(ctx context.Context, pos domain.Position, dest domain.GeoPoint) error {
	if f.offline == nil {
		return domain.ErrOfflineRoutingDisabled
	}

	req, err := f.buildRequest(pos, dest)
	if err != nil {
		return err
	}
	f.offline.FindOfflineRoute(ctx, req, f.callbackFor(req))
	return nil
}

// OnRouteResponse publishes the first route of resp. Responses without
// routes are dropped.
func (f *RouteFinder) OnRouteResponse(ctx context.Context, resp *domain.DirectionsResponse) {
	f.handleResponse(ctx, resp)
}

// OnRouteFailure logs err. The published route is left untouched.
func (f *RouteFinder) OnRouteFailure(ctx context.Context, err error) {
	f.handleFailure(ctx, err)
}

func (f *RouteFinder) handleResponse(ctx context.Context, resp *domain.DirectionsResponse) (*domain.DirectionsRoute, domain.RouteOutcome) {
	if resp == nil || len(resp.Routes) == 0 || resp.Routes[0] == nil {
		metrics.DirectionsOutcomes.WithLabelValues(string(domain.OutcomeEmpty)).Inc()
		return nil, domain.OutcomeEmpty
	}

	route := resp.Routes[0]
	f.slot.Set(route)
	metrics.DirectionsOutcomes.WithLabelValues(string(domain.OutcomePublished)).Inc()
	return route, domain.OutcomePublished
}

func (f *RouteFinder) handleFailure(ctx context.Context, err error) {
	metrics.DirectionsOutcomes.WithLabelValues(string(domain.OutcomeFailed)).Inc()
	f.logger.ErrorContext(ctx, "route request failed", "session", f.session.ID, "error", err)
}

// callbackFor binds a request to the shared handlers so the journal entry
// can carry the request's coordinates.
func (f *RouteFinder) callbackFor(req *domain.RouteRequest) ports.RouteCallback {
	requestedAt := f.now()

	return ports.RouteCallbackFuncs{
		OnResponse: func(ctx context.Context, resp *domain.DirectionsResponse) {
			route, outcome := f.handleResponse(ctx, resp)
			entry := f.journalEntry(req, requestedAt, outcome)
			if route != nil {
				entry.Distance = &route.Distance
				entry.Duration = &route.Duration
			}
			f.record(ctx, entry)
		},
		OnFailure: func(ctx context.Context, err error) {
			f.handleFailure(ctx, err)
			entry := f.journalEntry(req, requestedAt, domain.OutcomeFailed)
			entry.Error = err.Error()
			f.record(ctx, entry)
		},
	}
}

func (f *RouteFinder) buildRequest(pos domain.Position, dest domain.GeoPoint) (*domain.RouteRequest, error) {
	if err := pos.Validate(); err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	if err := dest.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	return &domain.RouteRequest{
		AccessToken:      f.accessToken,
		Origin:           pos.Point(),
		OriginBearing:    pos.Bearing,
		BearingTolerance: BearingTolerance,
		Destination:      dest,
		Profile:          f.session.Profile,
		Language:         f.session.Language,
	}, nil
}

func (f *RouteFinder) journalEntry(req *domain.RouteRequest, requestedAt time.Time, outcome domain.RouteOutcome) *domain.RouteRequestLog {
	return &domain.RouteRequestLog{
		SessionID:   f.session.ID,
		Origin:      req.Origin,
		Bearing:     req.OriginBearing,
		Destination: req.Destination,
		Outcome:     outcome,
		RequestedAt: requestedAt,
		CompletedAt: f.now(),
	}
}

func (f *RouteFinder) record(ctx context.Context, entry *domain.RouteRequestLog) {
	if f.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	if err := f.journal.Insert(ctx, entry); err != nil {
		f.logger.WarnContext(ctx, "journal route request", "error", err)
	}
}
