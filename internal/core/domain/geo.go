package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidBearing is returned when a heading is not a compass value in [0, 360).
	ErrInvalidBearing = errors.New("bearing must be in [0, 360) degrees")

	// ErrInvalidCoordinate is returned for latitudes/longitudes outside WGS 84 bounds.
	ErrInvalidCoordinate = errors.New("coordinate out of range")
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks the point lies inside WGS 84 bounds.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: lat %v", ErrInvalidCoordinate, p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: lon %v", ErrInvalidCoordinate, p.Lon)
	}
	return nil
}

// Position is a device fix: where it is and which way it is heading.
type Position struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Bearing float64 `json:"bearing"` // degrees clockwise from true north
}

// Point drops the heading.
func (p Position) Point() GeoPoint {
	return GeoPoint{Lat: p.Lat, Lon: p.Lon}
}

// Validate checks the coordinate and that the bearing is a compass value.
func (p Position) Validate() error {
	if err := p.Point().Validate(); err != nil {
		return err
	}
	if math.IsNaN(p.Bearing) || math.IsInf(p.Bearing, 0) || p.Bearing < 0 || p.Bearing >= 360 {
		return fmt.Errorf("%w: got %v", ErrInvalidBearing, p.Bearing)
	}
	return nil
}

// GeoLineString represents an ordered sequence of geographic coordinates.
type GeoLineString struct {
	Coordinates []GeoPoint `json:"coordinates"`
}
