package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrOfflineRoutingDisabled is returned by the offline route operation.
// No local road network is bundled with this build.
var ErrOfflineRoutingDisabled = errors.New("offline routing is disabled")

// NavigationSession carries the per-device options used to build route requests.
type NavigationSession struct {
	ID       string `json:"id"`
	Profile  string `json:"profile"`            // e.g. "driving-traffic"
	Language string `json:"language,omitempty"` // instruction locale
	Offline  bool   `json:"offline"`
}

// RouteRequest is a single outbound directions query.
type RouteRequest struct {
	AccessToken      string   `json:"-"`
	Origin           GeoPoint `json:"origin"`
	OriginBearing    float64  `json:"origin_bearing"`
	BearingTolerance float64  `json:"bearing_tolerance"`
	Destination      GeoPoint `json:"destination"`
	Profile          string   `json:"profile"`
	Language         string   `json:"language,omitempty"`
}

// DirectionsResponse is the body returned by the directions service.
type DirectionsResponse struct {
	Code      string             `json:"code"`
	Message   string             `json:"message,omitempty"`
	UUID      string             `json:"uuid,omitempty"`
	Routes    []*DirectionsRoute `json:"routes"`
	Waypoints []Waypoint         `json:"waypoints,omitempty"`
}

// DirectionsRoute is one route candidate. Callers treat it as opaque; the
// decoded fields exist for rendering only.
type DirectionsRoute struct {
	Distance    float64    `json:"distance"` // meters
	Duration    float64    `json:"duration"` // seconds
	Weight      float64    `json:"weight"`
	WeightName  string     `json:"weight_name,omitempty"`
	Geometry    *Geometry  `json:"geometry,omitempty"`
	Legs        []RouteLeg `json:"legs,omitempty"`
	VoiceLocale string     `json:"voiceLocale,omitempty"`
	RouteIndex  string     `json:"routeIndex,omitempty"`
}

// RouteLeg is the part of a route between two waypoints.
type RouteLeg struct {
	Summary  string          `json:"summary"`
	Distance float64         `json:"distance"`
	Duration float64         `json:"duration"`
	Steps    json.RawMessage `json:"steps,omitempty"`
}

// Geometry is a GeoJSON LineString ([lon, lat] pairs).
type Geometry struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// LineString converts the GeoJSON geometry to lat/lon points.
func (g *Geometry) LineString() GeoLineString {
	if g == nil {
		return GeoLineString{}
	}
	pts := make([]GeoPoint, 0, len(g.Coordinates))
	for _, c := range g.Coordinates {
		pts = append(pts, GeoPoint{Lon: c[0], Lat: c[1]})
	}
	return GeoLineString{Coordinates: pts}
}

// Waypoint is an input coordinate snapped to the road network.
type Waypoint struct {
	Name     string     `json:"name"`
	Location [2]float64 `json:"location"`
	Distance float64    `json:"distance,omitempty"`
}

// RouteOutcome classifies how a route request ended.
type RouteOutcome string

const (
	OutcomeRequested RouteOutcome = "requested"
	OutcomePublished RouteOutcome = "published"
	OutcomeEmpty     RouteOutcome = "empty"
	OutcomeFailed    RouteOutcome = "failed"
)

// RouteRequestLog is a journal entry for one completed route request.
type RouteRequestLog struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Origin      GeoPoint     `json:"origin"`
	Bearing     float64      `json:"bearing"`
	Destination GeoPoint     `json:"destination"`
	Outcome     RouteOutcome `json:"outcome"`
	Error       string       `json:"error,omitempty"`
	Distance    *float64     `json:"distance,omitempty"` // meters, published routes only
	Duration    *float64     `json:"duration,omitempty"` // seconds, published routes only
	RequestedAt time.Time    `json:"requested_at"`
	CompletedAt time.Time    `json:"completed_at"`
}
