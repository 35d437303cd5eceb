package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routefinder/internal/adapters/postgres"
	"github.com/samirrijal/routefinder/internal/adapters/valkey"
	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/usecases"
	"github.com/samirrijal/routefinder/internal/pkg/observable"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Finder      *usecases.RouteFinder
	Slot        *observable.Value[*domain.DirectionsRoute]
	Broadcaster *usecases.RouteBroadcaster
	History     *usecases.RouteHistoryService
	NATS        *nats.Conn
	DB          *postgres.DB
	Cache       *valkey.Cache
}
