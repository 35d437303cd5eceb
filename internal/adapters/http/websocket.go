package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	natsadapter "github.com/samirrijal/routefinder/internal/adapters/nats"
	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/pkg/metrics"
)

// wsMessage is sent from client to change the session filter.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Session string `json:"session"` // session id filter ("" = all sessions)
}

// WebSocketHandler returns a handler that relays published routes to
// connected clients. With NATS configured it relays nav.route.* messages
// from every instance; otherwise it follows the local route slot.
// Clients may send {"action":"subscribe","session":"car-1"} to narrow the feed.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var filter sessionFilter
		deliver := func(_ context.Context, update *natsadapter.RouteUpdate) error {
			if !filter.Match(update.SessionID) {
				return nil
			}
			return writeJSON(update)
		}

		stop, err := subscribeRoutes(ctx, deps, deliver)
		if err != nil {
			slog.Error("ws subscribe failed", "error", err)
			return
		}
		defer stop()

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()
		defer close(done)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "subscribe":
				filter.Set(m.Session)
				_ = writeJSON(map[string]string{"status": "subscribed", "session": m.Session})
			case "unsubscribe":
				filter.Set("")
				_ = writeJSON(map[string]string{"status": "unsubscribed"})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}

// sessionFilter narrows a feed to one session; empty matches all.
type sessionFilter struct {
	mu      sync.RWMutex
	session string
}

func (f *sessionFilter) Set(session string) {
	f.mu.Lock()
	f.session = session
	f.mu.Unlock()
}

func (f *sessionFilter) Match(session string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.session == "" || f.session == session
}

// subscribeRoutes attaches deliver to the broker when available, else to
// the in-process slot.
func subscribeRoutes(ctx context.Context, deps *Dependencies, deliver func(context.Context, *natsadapter.RouteUpdate) error) (func(), error) {
	if deps.NATS != nil {
		sub := natsadapter.NewSubscriber(deps.NATS)
		if err := sub.SubscribeRoutes(ctx, "", deliver); err != nil {
			return nil, err
		}
		return sub.Close, nil
	}

	if deps.Slot == nil {
		return func() {}, nil
	}

	sessionID := ""
	if deps.Finder != nil {
		sessionID = deps.Finder.Session().ID
	}
	return deps.Slot.Subscribe(func(route *domain.DirectionsRoute) {
		_ = deliver(ctx, &natsadapter.RouteUpdate{
			SessionID:   sessionID,
			Route:       route,
			PublishedAt: time.Now().UTC(),
		})
	}), nil
}
