package ingest

import (
	"fmt"
	"strconv"

	"github.com/clbanning/mxj/v2"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

// ParseOSMXML reads an OSM XML export. Every <way> tagged with highway becomes a
// segment whose points are its resolved <nd ref> nodes. Ways with missing nodes
// or fewer than two points are skipped.
func ParseOSMXML(data []byte) ([]domain.StreetSegment, error) {
	xmlMap, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to parse OSM XML: %w", err)
	}

	osm, ok := xmlMap["osm"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("ingest: failed to parse OSM XML: missing <osm> root")
	}

	nodes := make(map[string]geo.GeoPoint)
	for _, n := range elements(osm["node"]) {
		id, _ := n["-id"].(string)
		lat, latErr := parseFloat(n["-lat"])
		lon, lonErr := parseFloat(n["-lon"])
		if id == "" || latErr != nil || lonErr != nil {
			continue
		}
		nodes[id] = geo.GeoPoint{Lat: lat, Lon: lon}
	}

	var (
		segments []domain.StreetSegment
		dropped  int
	)
	for _, way := range elements(osm["way"]) {
		tags := make(map[string]string)
		for _, tag := range elements(way["tag"]) {
			k, _ := tag["-k"].(string)
			v, _ := tag["-v"].(string)
			if k != "" {
				tags[k] = v
			}
		}
		highway, ok := tags["highway"]
		if !ok {
			continue
		}

		refs := elements(way["nd"])
		points := make([]geo.GeoPoint, 0, len(refs))
		complete := true
		for _, nd := range refs {
			ref, _ := nd["-ref"].(string)
			p, found := nodes[ref]
			if !found {
				complete = false
				break
			}
			points = append(points, p)
		}
		if !complete || !usable(points) {
			dropped++
			continue
		}

		id, _ := way["-id"].(string)
		segments = append(segments, domain.StreetSegment{
			ID:      "way/" + id,
			Name:    tags["name"],
			Highway: highway,
			Points:  points,
		})
	}

	skipped("osm", dropped)
	return segments, nil
}

// elements normalizes an mxj value that is a single element or a list of them
func elements(v interface{}) []map[string]interface{} {
	switch e := v.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{e}
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(e))
		for _, item := range e {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func parseFloat(v interface{}) (float64, error) {
	switch f := v.(type) {
	case string:
		return strconv.ParseFloat(f, 64)
	case float64:
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
