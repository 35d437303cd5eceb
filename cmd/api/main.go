package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routefinder/internal/adapters/directions"
	"github.com/samirrijal/routefinder/internal/adapters/http"
	natsadapter "github.com/samirrijal/routefinder/internal/adapters/nats"
	"github.com/samirrijal/routefinder/internal/adapters/postgres"
	"github.com/samirrijal/routefinder/internal/adapters/valkey"
	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
	"github.com/samirrijal/routefinder/internal/core/usecases"
	"github.com/samirrijal/routefinder/internal/pkg/config"
	"github.com/samirrijal/routefinder/internal/pkg/logging"
	"github.com/samirrijal/routefinder/internal/pkg/observable"
	"github.com/samirrijal/routefinder/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("routefinder-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	session := domain.NavigationSession{
		ID:       cfg.Session.ID,
		Profile:  cfg.Session.Profile,
		Language: cfg.Session.Language,
		Offline:  cfg.Session.Offline,
	}

	// Journal (optional)
	var finderOpts []usecases.RouteFinderOption
	var history *usecases.RouteHistoryService
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Warn("database unavailable, request journal disabled", "error", err)
		db = nil
	} else {
		defer db.Close()
		journal := postgres.NewRouteRequestRepo(db)
		finderOpts = append(finderOpts, usecases.WithJournal(journal))
		history = usecases.NewRouteHistoryService(journal)
	}

	// Cache
	var routeCache ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
		routeCache = cache
	}

	// NATS
	var publisher ports.EventPublisher
	var natsConn *nats.Conn
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
		natsConn = pub.Conn()
	}

	// Directions client and the published route slot
	client := directions.New(cfg.Directions.BaseURL, "routefinder/1.0", cfg.Directions.TimeoutDuration())

	slot := observable.New[*domain.DirectionsRoute]()
	finder := usecases.NewRouteFinder(session, client, slot, cfg.Directions.AccessToken, finderOpts...)

	broadcaster := usecases.NewRouteBroadcaster(session.ID, publisher, routeCache, cfg.Valkey.TTL)
	detach := broadcaster.Attach(slot)
	defer detach()

	deps := &http.Dependencies{
		Finder:      finder,
		Slot:        slot,
		Broadcaster: broadcaster,
		History:     history,
		NATS:        natsConn,
		DB:          db,
		Cache:       cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "routefinder API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "session", session.ID, "profile", session.Profile)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// In-flight directions requests still publish before the sinks close.
	client.Close()

	slog.Info("server stopped")
}
