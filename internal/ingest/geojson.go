package ingest

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

// ParseGeoJSON reads a FeatureCollection of LineString / MultiLineString streets.
// Each line becomes one segment; other geometries and lines with fewer than two
// valid points are skipped.
func ParseGeoJSON(data []byte, order CoordOrder) ([]domain.StreetSegment, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to parse GeoJSON: %w", err)
	}

	var (
		segments []domain.StreetSegment
		dropped  int
	)
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			dropped++
			continue
		}

		id := featureID(f, i)
		name := f.Properties.MustString("name", "")
		highway := f.Properties.MustString("highway", "")

		var lines []orb.LineString
		switch g := f.Geometry.(type) {
		case orb.LineString:
			lines = []orb.LineString{g}
		case orb.MultiLineString:
			lines = g
		default:
			dropped++
			continue
		}

		for j, line := range lines {
			points := make([]geo.GeoPoint, 0, len(line))
			for _, p := range line {
				points = append(points, point(p[0], p[1], order))
			}
			if !usable(points) {
				dropped++
				continue
			}

			segID := id
			if len(lines) > 1 {
				segID = fmt.Sprintf("%s#%d", id, j)
			}
			segments = append(segments, domain.StreetSegment{
				ID:      segID,
				Name:    name,
				Highway: highway,
				Points:  points,
			})
		}
	}

	skipped("geojson", dropped)
	return segments, nil
}

func featureID(f *geojson.Feature, i int) string {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	for _, key := range []string{"id", "@id", "osm_id"} {
		if v, ok := f.Properties[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return fmt.Sprintf("feature/%d", i)
}

// DecodeLine reads a GeoJSON LineString geometry as stored by dataset tables
func DecodeLine(data []byte) ([]geo.GeoPoint, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to decode geometry: %w", err)
	}
	line, ok := g.Coordinates.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("ingest: expected LineString, got %s", g.Type)
	}

	points := make([]geo.GeoPoint, 0, len(line))
	for _, p := range line {
		points = append(points, point(p[0], p[1], LonLat))
	}
	if err := geo.ValidatePoints(points); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return points, nil
}

// EncodeLine writes points as a GeoJSON LineString geometry
func EncodeLine(points []geo.GeoPoint) ([]byte, error) {
	line := make(orb.LineString, 0, len(points))
	for _, p := range points {
		line = append(line, orb.Point{p.Lon, p.Lat})
	}
	return geojson.NewGeometry(line).MarshalJSON()
}
