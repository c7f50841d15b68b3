// Package ingest normalizes external street-graph and route datasets into domain
// types. Coordinate order is resolved here and nowhere else.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/internal/telemetry"
)

// CoordOrder is the axis order of coordinate pairs in a source document
type CoordOrder int

const (
	// LonLat is the GeoJSON order
	LonLat CoordOrder = iota
	// LatLon is used by hand-written route datasets
	LatLon
)

// ParseCoordOrder accepts "lonlat" / "latlon" (case-insensitive)
func ParseCoordOrder(s string) (CoordOrder, error) {
	switch strings.ToLower(strings.ReplaceAll(s, ",", "")) {
	case "lonlat", "":
		return LonLat, nil
	case "latlon":
		return LatLon, nil
	default:
		return LonLat, fmt.Errorf("ingest: unknown coordinate order %q", s)
	}
}

func (o CoordOrder) String() string {
	if o == LatLon {
		return "latlon"
	}
	return "lonlat"
}

// ErrUnsupportedFormat is returned by LoadStreetFile for unknown extensions
var ErrUnsupportedFormat = errors.New("ingest: unsupported street file format")

// point normalizes one coordinate pair
func point(a, b float64, order CoordOrder) geo.GeoPoint {
	if order == LatLon {
		return geo.GeoPoint{Lat: a, Lon: b}
	}
	return geo.GeoPoint{Lat: b, Lon: a}
}

// usable reports whether a polyline can become a segment or route
func usable(points []geo.GeoPoint) bool {
	return geo.ValidatePoints(points) == nil
}

// skipped logs and counts records dropped at the boundary
func skipped(source string, n int) {
	if n == 0 {
		return
	}
	slog.Debug("Skipped malformed records", "source", source, "count", n)
	telemetry.Metrics().IngestSkipped.Add(context.Background(), int64(n),
		metric.WithAttributes(attribute.String("source", source)))
}

// LoadStreetFile reads a street graph from disk, choosing the parser by extension:
// .geojson/.json are GeoJSON in order, .osm/.xml are OSM XML.
func LoadStreetFile(path string, order CoordOrder) ([]domain.StreetSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return ParseGeoJSON(data, order)
	case ".osm", ".xml":
		return ParseOSMXML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
