package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys for directions calls.
const (
	AttrProfile      = attribute.Key("routefinder.profile")
	AttrBearing      = attribute.Key("routefinder.origin.bearing")
	AttrTolerance    = attribute.Key("routefinder.origin.bearing_tolerance")
	AttrRouteCount   = attribute.Key("routefinder.routes")
	AttrHTTPStatus   = attribute.Key("http.status_code")
	AttrResponseCode = attribute.Key("routefinder.response.code")
)
