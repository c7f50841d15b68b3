package domain

import (
	"fmt"

	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/pkg/utils"
)

// Classification is the street class a route inherits from its source data.
// It is used for styling and selection only.
type Classification string

const (
	ClassPrimary   Classification = "primary"
	ClassSecondary Classification = "secondary"
	ClassTertiary  Classification = "tertiary"
)

// ParseClassification maps a stored value to a Classification, defaulting to tertiary
func ParseClassification(s string) Classification {
	switch Classification(s) {
	case ClassPrimary, ClassSecondary:
		return Classification(s)
	default:
		return ClassTertiary
	}
}

// Route is an immutable polyline an entity travels along.
// Length is computed once by NewRoute and shared by every entity on the route.
type Route struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Classification Classification  `json:"classification"`
	Color          string          `json:"color,omitempty"`
	Points         []geo.GeoPoint  `json:"points"`
	Length         geo.LengthIndex `json:"-"`
}

// NewRoute validates points and caches the length index
func NewRoute(id, name string, class Classification, points []geo.GeoPoint) (*Route, error) {
	idx, err := geo.BuildLengthIndex(points)
	if err != nil {
		return nil, fmt.Errorf("route %q: %w", id, err)
	}

	owned := make([]geo.GeoPoint, len(points))
	copy(owned, points)

	return &Route{
		ID:             id,
		Name:           name,
		Classification: class,
		Points:         owned,
		Length:         idx,
	}, nil
}

// TotalLength is the route length in meters
func (r *Route) TotalLength() float64 {
	return r.Length.TotalLength
}

// LengthKm is the route length in kilometers
func (r *Route) LengthKm() float64 {
	return r.Length.TotalLength / 1000
}

// PositionAt interpolates the position at a normalized progress
func (r *Route) PositionAt(progress float64) geo.Sample {
	return geo.Interpolate(r.Length, r.Points, progress)
}

// Start returns the first point of the route
func (r *Route) Start() geo.GeoPoint {
	return r.Points[0]
}

// End returns the last point of the route
func (r *Route) End() geo.GeoPoint {
	return r.Points[len(r.Points)-1]
}

// Truncate returns a new route ending at the given vertex index (inclusive).
func (r *Route) Truncate(id string, lastIndex int) (*Route, error) {
	if lastIndex < 1 || lastIndex >= len(r.Points) {
		return nil, fmt.Errorf("route %q: truncate at %d: %w", r.ID, lastIndex, geo.ErrInvalidRoute)
	}
	out, err := NewRoute(id, r.Name, r.Classification, r.Points[:lastIndex+1])
	if err != nil {
		return nil, err
	}
	out.Color = r.Color
	return out, nil
}

// RouteSummary is the JSON listing shape for routes
type RouteSummary struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
	Color          string         `json:"color,omitempty"`
	PointCount     int            `json:"point_count"`
	LengthKm       float64        `json:"length_km"`
}

// Summary describes the route without its geometry
func (r *Route) Summary() RouteSummary {
	return RouteSummary{
		ID:             r.ID,
		Name:           r.Name,
		Classification: r.Classification,
		Color:          r.Color,
		PointCount:     len(r.Points),
		LengthKm:       utils.RoundTo(r.LengthKm(), 2),
	}
}
