package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subscriber delivers route updates published by any routefinder instance.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewSubscriber wraps an existing connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeRoutes calls handler for every update on sessionID, or on all
// sessions when sessionID is empty. Malformed messages are skipped.
func (s *Subscriber) SubscribeRoutes(ctx context.Context, sessionID string, handler func(ctx context.Context, update *RouteUpdate) error) error {
	subject := RouteSubjectPrefix + ">"
	if sessionID != "" {
		subject = RouteSubject(sessionID)
	}

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		update, err := DecodeRouteUpdate(msg.Data)
		if err != nil {
			return
		}
		_ = handler(ctx, update)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes. The connection is owned by the caller.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}

// DecodeRouteUpdate parses the wire form produced by EncodeRouteUpdate.
func DecodeRouteUpdate(data []byte) (*RouteUpdate, error) {
	var u RouteUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode route update: %w", err)
	}
	if u.Route == nil {
		return nil, fmt.Errorf("decode route update: missing route")
	}
	return &u, nil
}
