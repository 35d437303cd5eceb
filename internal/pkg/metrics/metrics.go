package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routefinder",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Directions metrics
	DirectionsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "directions",
		Name:      "requests_total",
		Help:      "Route requests issued to the directions service",
	}, []string{"profile"})

	DirectionsOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "directions",
		Name:      "outcomes_total",
		Help:      "Completed route requests by outcome (published, empty, failed)",
	}, []string{"outcome"})

	DirectionsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "routefinder",
		Subsystem: "directions",
		Name:      "request_duration_seconds",
		Help:      "Round-trip latency of directions requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routefinder",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	BroadcastErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "broadcast",
		Name:      "errors_total",
		Help:      "Failed fan-out writes of published routes",
	}, []string{"sink"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
