// Package directions talks to a Mapbox Directions v5 compatible API.
package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
	"github.com/samirrijal/routefinder/internal/pkg/metrics"
	"github.com/samirrijal/routefinder/internal/pkg/telemetry"
)

// StatusError is returned when the service answers with a non-2xx status.
// Such answers go to OnRouteFailure and are logged; they are never treated
// as an empty response, even though the body carries no routes.
type StatusError struct {
	StatusCode int
	Code       string // service error code, e.g. "InvalidInput"
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("directions: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("directions: HTTP %d", e.StatusCode)
}

// Client implements ports.DirectionsClient. Each GetRoute runs on its own
// goroutine; Close waits for in-flight requests to finish.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
	tracer  trace.Tracer
	logger  *slog.Logger

	wg sync.WaitGroup
}

// New creates a directions client. userAgent identifies the calling app.
func New(baseURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                     userAgent,
			ReadTimeout:              timeout,
			WriteTimeout:             timeout,
			MaxIdleConnDuration:      90 * time.Second,
			NoDefaultUserAgentHeader: userAgent != "",
		},
		tracer: telemetry.Tracer("routefinder/directions"),
		logger: slog.Default(),
	}
}

// GetRoute submits req and returns immediately. cb is invoked exactly once
// from a background goroutine. ctx cancellation does not abort the request;
// only the client timeout does.
func (c *Client) GetRoute(ctx context.Context, req *domain.RouteRequest, cb ports.RouteCallback) {
	ctx = context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		resp, err := c.Fetch(ctx, req)
		if err != nil {
			cb.OnRouteFailure(ctx, err)
			return
		}
		cb.OnRouteResponse(ctx, resp)
	}()
}

// Fetch performs the request synchronously.
func (c *Client) Fetch(ctx context.Context, req *domain.RouteRequest) (*domain.DirectionsResponse, error) {
	ctx, span := c.tracer.Start(ctx, "directions.GetRoute", trace.WithAttributes(
		telemetry.AttrProfile.String(req.Profile),
		telemetry.AttrBearing.Float64(req.OriginBearing),
		telemetry.AttrTolerance.Float64(req.BearingTolerance),
	))
	defer span.End()

	start := time.Now()
	defer func() { metrics.DirectionsLatency.Observe(time.Since(start).Seconds()) }()

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.SetRequestURI(c.RouteURL(req))
	httpReq.Header.SetMethod(fasthttp.MethodGet)
	httpReq.Header.Set("Accept", "application/json")

	if err := c.http.DoTimeout(httpReq, httpResp, c.timeout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, fmt.Errorf("directions request: %w", err)
	}

	status := httpResp.StatusCode()
	span.SetAttributes(telemetry.AttrHTTPStatus.Int(status))
	body := httpResp.Body()

	if status < 200 || status > 299 {
		serr := &StatusError{StatusCode: status}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil {
			serr.Code, serr.Message = payload.Code, payload.Message
		}
		span.SetStatus(codes.Error, serr.Error())
		return nil, serr
	}

	var out domain.DirectionsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return nil, fmt.Errorf("decode directions response: %w", err)
	}

	span.SetAttributes(
		telemetry.AttrResponseCode.String(out.Code),
		telemetry.AttrRouteCount.Int(len(out.Routes)),
	)
	c.logger.DebugContext(ctx, "directions response", "code", out.Code, "routes", len(out.Routes), "status", status)
	return &out, nil
}

// RouteURL renders the request as a Directions v5 URL:
// {base}/directions/v5/mapbox/{profile}/{lon},{lat};{lon},{lat}?...
func (c *Client) RouteURL(req *domain.RouteRequest) string {
	coords := formatCoord(req.Origin) + ";" + formatCoord(req.Destination)

	q := url.Values{}
	q.Set("access_token", req.AccessToken)
	// One bearing pair per coordinate; the destination slot is left empty.
	q.Set("bearings", formatFloat(req.OriginBearing)+","+formatFloat(req.BearingTolerance)+";")
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("steps", "true")
	if req.Language != "" {
		q.Set("language", req.Language)
	}

	profile := req.Profile
	if profile == "" {
		profile = "driving"
	}

	return fmt.Sprintf("%s/directions/v5/mapbox/%s/%s?%s",
		c.baseURL, url.PathEscape(profile), coords, q.Encode())
}

// Close blocks until every in-flight request has delivered its callback.
func (c *Client) Close() {
	c.wg.Wait()
	c.http.CloseIdleConnections()
}

func formatCoord(p domain.GeoPoint) string {
	return formatFloat(p.Lon) + "," + formatFloat(p.Lat)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
