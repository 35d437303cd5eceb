// Command routefind requests one route from the directions service and
// prints the first candidate, or the failure, as JSON.
//
//	routefind -from 37.77,-122.42 -bearing 45 -to 37.78,-122.41
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/routefinder/internal/adapters/directions"
	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
	"github.com/samirrijal/routefinder/internal/core/usecases"
	"github.com/samirrijal/routefinder/internal/pkg/config"
	"github.com/samirrijal/routefinder/internal/pkg/geospatial"
	"github.com/samirrijal/routefinder/internal/pkg/logging"
	"github.com/samirrijal/routefinder/internal/pkg/observable"
)

// outcome is what the finder did with the single response.
type outcome struct {
	route *domain.DirectionsRoute
	err   error
}

// notifyingClient forwards to the real client and reports completion after
// the finder has handled the callback.
type notifyingClient struct {
	inner ports.DirectionsClient
	done  chan<- error
}

func (n notifyingClient) GetRoute(ctx context.Context, req *domain.RouteRequest, cb ports.RouteCallback) {
	n.inner.GetRoute(ctx, req, ports.RouteCallbackFuncs{
		OnResponse: func(ctx context.Context, resp *domain.DirectionsResponse) {
			cb.OnRouteResponse(ctx, resp)
			n.done <- nil
		},
		OnFailure: func(ctx context.Context, err error) {
			cb.OnRouteFailure(ctx, err)
			n.done <- err
		},
	})
}

func main() {
	from := flag.String("from", "", "origin as lat,lon")
	to := flag.String("to", "", "destination as lat,lon")
	bearing := flag.Float64("bearing", math.NaN(), "current heading in degrees (default: towards destination)")
	profile := flag.String("profile", "", "routing profile (default from config)")
	wait := flag.Duration("wait", 30*time.Second, "how long to wait for the directions service")
	flag.Parse()

	origin, err := parsePoint(*from)
	if err != nil {
		log.Fatalf("-from: %v", err)
	}
	dest, err := parsePoint(*to)
	if err != nil {
		log.Fatalf("-to: %v", err)
	}

	cfg, err := config.Load("routefinder-cli")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	session := domain.NavigationSession{
		ID:       cfg.Session.ID,
		Profile:  cfg.Session.Profile,
		Language: cfg.Session.Language,
	}
	if *profile != "" {
		session.Profile = *profile
	}

	pos := domain.Position{Lat: origin.Lat, Lon: origin.Lon, Bearing: *bearing}
	if math.IsNaN(pos.Bearing) {
		pos.Bearing = geospatial.InitialBearing(origin.Lat, origin.Lon, dest.Lat, dest.Lon)
	}

	res, err := findOnce(context.Background(), cfg, session, pos, dest, *wait)
	if err != nil {
		log.Fatal(err)
	}
	if res.err != nil {
		fmt.Fprintf(os.Stderr, "route request failed: %v\n", res.err)
		os.Exit(1)
	}
	if res.route == nil {
		fmt.Fprintln(os.Stderr, "no route found")
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.route); err != nil {
		log.Fatalf("encode route: %v", err)
	}
}

func findOnce(ctx context.Context, cfg *config.Config, session domain.NavigationSession, pos domain.Position, dest domain.GeoPoint, wait time.Duration) (*outcome, error) {
	client := directions.New(cfg.Directions.BaseURL, "routefind/1.0", cfg.Directions.TimeoutDuration())
	defer client.Close()

	done := make(chan error, 1)
	slot := observable.New[*domain.DirectionsRoute]()
	finder := usecases.NewRouteFinder(session, notifyingClient{inner: client, done: done}, slot, cfg.Directions.AccessToken,
		usecases.WithLogger(slog.Default()))

	slog.Debug("requesting route", "origin", pos, "destination", dest, "profile", session.Profile)
	if err := finder.FindRoute(ctx, pos, dest); err != nil {
		return nil, err
	}

	select {
	case err := <-done:
		route, _ := slot.Get()
		return &outcome{route: route, err: err}, nil
	case <-time.After(wait):
		return nil, fmt.Errorf("no answer from directions service after %s", wait)
	}
}

// parsePoint parses "lat,lon".
func parsePoint(s string) (domain.GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return domain.GeoPoint{}, errors.New("expected lat,lon")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("longitude: %w", err)
	}
	p := domain.GeoPoint{Lat: lat, Lon: lon}
	return p, p.Validate()
}
