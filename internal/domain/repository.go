package domain

import (
	"context"
	"strings"

	"github.com/smartcity/mobility/internal/geo"
)

// StreetSegment is one polyline of the street graph with its free-text highway tag
type StreetSegment struct {
	ID      string         `json:"id"`
	Name    string         `json:"name,omitempty"`
	Highway string         `json:"highway"`
	Points  []geo.GeoPoint `json:"points"`
}

// Classification maps the highway tag with a containment rule:
// "primary" or "trunk" -> primary, "secondary" -> secondary, else tertiary.
func (s StreetSegment) Classification() Classification {
	return ClassifyHighway(s.Highway)
}

// First returns the first point of the segment
func (s StreetSegment) First() geo.GeoPoint {
	return s.Points[0]
}

// Last returns the last point of the segment
func (s StreetSegment) Last() geo.GeoPoint {
	return s.Points[len(s.Points)-1]
}

// ClassifyHighway maps an OSM highway tag to a Classification
func ClassifyHighway(highway string) Classification {
	h := strings.ToLower(highway)
	switch {
	case strings.Contains(h, "primary"), strings.Contains(h, "trunk"):
		return ClassPrimary
	case strings.Contains(h, "secondary"):
		return ClassSecondary
	default:
		return ClassTertiary
	}
}

// DatasetRepository defines the read-only sources the engine consumes.
// This follows the Dependency Inversion Principle - domain defines the interface
type DatasetRepository interface {
	// ListStreetSegments returns the street graph used by the route builder
	ListStreetSegments(ctx context.Context) ([]StreetSegment, error)

	// ListRoutes returns predefined routes (static or fetched datasets)
	ListRoutes(ctx context.Context) ([]*Route, error)

	// Health checks connectivity of the underlying store
	Health(ctx context.Context) error
}

// RouteWriter is implemented by repositories that can persist generated routes
type RouteWriter interface {
	SaveRoutes(ctx context.Context, routes []*Route) error
}
