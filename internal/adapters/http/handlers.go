package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// routeRequestBody is the JSON body accepted by the route endpoints.
type routeRequestBody struct {
	Position    *domain.Position `json:"position"`
	Destination *domain.GeoPoint `json:"destination"`
}

func parseRouteRequest(c *fiber.Ctx) (*routeRequestBody, error) {
	var body routeRequestBody
	if err := c.BodyParser(&body); err != nil {
		return nil, errors.New("invalid request body")
	}
	if body.Position == nil {
		return nil, errors.New("position is required")
	}
	if body.Destination == nil {
		return nil, errors.New("destination is required")
	}
	return &body, nil
}

// requestErrorResponse maps route request errors to API errors.
func requestErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidBearing), errors.Is(err, domain.ErrInvalidCoordinate):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrOfflineRoutingDisabled):
		return errNotImplemented(c, err.Error())
	default:
		return errInternal(c, err.Error())
	}
}

// FindRouteHandler issues a route request and returns 202 without waiting
// for the directions service. The route is delivered through GET /v1/route
// and the WebSocket feed.
func FindRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body, err := parseRouteRequest(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		if err := deps.Finder.FindRoute(c.UserContext(), *body.Position, *body.Destination); err != nil {
			return requestErrorResponse(c, err)
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":     string(domain.OutcomeRequested),
			"session_id": deps.Finder.Session().ID,
		})
	}
}

// FindOfflineRouteHandler resolves a route without the remote service.
func FindOfflineRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body, err := parseRouteRequest(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		if err := deps.Finder.FindOfflineRoute(c.UserContext(), *body.Position, *body.Destination); err != nil {
			return requestErrorResponse(c, err)
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":     string(domain.OutcomeRequested),
			"session_id": deps.Finder.Session().ID,
		})
	}
}

// currentRoute returns the slot value, or the cached snapshot when nothing
// has been published since start.
func currentRoute(ctx context.Context, deps *Dependencies) (*domain.DirectionsRoute, bool) {
	if deps.Slot != nil {
		if route, ok := deps.Slot.Get(); ok && route != nil {
			return route, true
		}
	}

	if deps.Broadcaster != nil {
		route, err := deps.Broadcaster.Latest(ctx)
		if err == nil {
			return route, true
		}
		LoggerFromCtx(ctx).Debug("route snapshot unavailable", "error", err)
	}

	return nil, false
}

// CurrentRouteHandler returns the most recently published route. After a
// restart it falls back to the cached snapshot.
func CurrentRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-cache")

		route, ok := currentRoute(c.UserContext(), deps)
		if !ok {
			return errNotFound(c, "no route published yet")
		}
		return c.JSON(route)
	}
}

// RouteHistoryHandler lists recent route requests for the session.
func RouteHistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.History == nil {
			return errUnavailable(c, "request journal not configured")
		}

		limit := c.QueryInt("limit", 20)
		entries, err := deps.History.ListRecent(c.UserContext(), deps.Finder.Session().ID, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if entries == nil {
			entries = []domain.RouteRequestLog{}
		}

		return c.JSON(fiber.Map{"data": entries})
	}
}
