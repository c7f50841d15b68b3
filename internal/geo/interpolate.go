package geo

import (
	"math"
	"sort"

	"github.com/smartcity/mobility/pkg/utils"
)

// Sample is an interpolated position on a route
type Sample struct {
	Position     GeoPoint `json:"position"`
	Heading      float64  `json:"heading_radians"`
	SegmentIndex int      `json:"segment_index"`
}

// Heading returns the planar direction of travel from a to b in radians,
// measured from north (increasing latitude) towards east.
func Heading(a, b GeoPoint) float64 {
	return math.Atan2(b.Lon-a.Lon, b.Lat-a.Lat)
}

// Interpolate locates progress (0..1) on the route described by idx and points.
//
// Latitude and longitude are interpolated linearly inside the containing segment.
// That is a planar approximation which holds at city scale; do not use it for
// continental routes. Wrapping or clamping progress is the caller's job, but values
// at or beyond either end return the exact endpoint.
func Interpolate(idx LengthIndex, points []GeoPoint, progress float64) Sample {
	n := len(points)
	switch n {
	case 0:
		return Sample{}
	case 1:
		return Sample{Position: points[0]}
	}

	if len(idx.CumulativeLengths) != n || len(idx.SegmentLengths) != n-1 {
		rebuilt, err := BuildLengthIndex(points)
		if err != nil {
			return Sample{Position: points[0]}
		}
		idx = rebuilt
	}

	lastSegment := n - 2

	// !(progress > 0) also catches NaN
	if !(progress > 0) {
		return Sample{
			Position:     points[0],
			Heading:      Heading(points[0], points[1]),
			SegmentIndex: 0,
		}
	}

	target := idx.DistanceAt(progress)
	if progress >= 1 || target >= idx.TotalLength {
		return Sample{
			Position:     points[n-1],
			Heading:      Heading(points[n-2], points[n-1]),
			SegmentIndex: lastSegment,
		}
	}

	// largest i with cumulative[i] <= target; zero-length segments are skipped
	i := sort.Search(n, func(j int) bool {
		return idx.CumulativeLengths[j] > target
	}) - 1
	if i < 0 {
		i = 0
	}
	if i > lastSegment {
		i = lastSegment
	}

	var t float64
	if segment := idx.SegmentLengths[i]; segment > 0 {
		t = utils.Clamp((target-idx.CumulativeLengths[i])/segment, 0, 1)
	}

	start, end := points[i], points[i+1]
	return Sample{
		Position: GeoPoint{
			Lat: utils.Lerp(start.Lat, end.Lat, t),
			Lon: utils.Lerp(start.Lon, end.Lon, t),
		},
		Heading:      Heading(start, end),
		SegmentIndex: i,
	}
}
