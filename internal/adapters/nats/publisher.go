package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// RouteSubjectPrefix is the subject namespace route updates are published under.
const RouteSubjectPrefix = "nav.route."

// RouteSubject returns the subject for a navigation session.
func RouteSubject(sessionID string) string {
	return RouteSubjectPrefix + sessionID
}

// RouteUpdate is the message body published for each new route.
type RouteUpdate struct {
	SessionID   string                  `json:"session_id"`
	Route       *domain.DirectionsRoute `json:"route"`
	PublishedAt time.Time               `json:"published_at"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Only the latest route per session matters; keep one message per subject.
	cfg := nats.StreamConfig{
		Name:              "NAV_ROUTES",
		Subjects:          []string{RouteSubjectPrefix + ">"},
		Retention:         nats.LimitsPolicy,
		MaxMsgsPerSubject: 1,
		MaxAge:            24 * time.Hour,
		Storage:           nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishRoute publishes a route update for sessionID.
func (p *Publisher) PublishRoute(ctx context.Context, sessionID string, route *domain.DirectionsRoute) error {
	data, err := EncodeRouteUpdate(sessionID, route, time.Now())
	if err != nil {
		return err
	}
	_, err = p.js.Publish(RouteSubject(sessionID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for readiness checks and relays.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// EncodeRouteUpdate renders the wire form of a route update.
func EncodeRouteUpdate(sessionID string, route *domain.DirectionsRoute, at time.Time) ([]byte, error) {
	data, err := json.Marshal(RouteUpdate{SessionID: sessionID, Route: route, PublishedAt: at.UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode route update: %w", err)
	}
	return data, nil
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
