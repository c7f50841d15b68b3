// Package geo holds the pure geometry shared by every animated map: great-circle
// distance, route length indexes, position interpolation and point simplification.
package geo

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidRoute is returned when a route has fewer than two points.
	ErrInvalidRoute = errors.New("geo: route needs at least 2 points")

	// ErrCoordinateOutOfRange is returned for latitudes outside [-90, 90],
	// longitudes outside [-180, 180] or NaN components.
	ErrCoordinateOutOfRange = errors.New("geo: coordinate out of range")
)

// GeoPoint is a latitude/longitude pair in degrees
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks the latitude/longitude invariant
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: (%f, %f)", ErrCoordinateOutOfRange, p.Lat, p.Lon)
	}
	return nil
}

// String implements fmt.Stringer
func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lon)
}

// ValidatePoints validates every point of a polyline and its minimum size.
func ValidatePoints(points []GeoPoint) error {
	if len(points) < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidRoute, len(points))
	}
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}
