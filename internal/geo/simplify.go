package geo

import "math"

// SimplifyStride keeps every stride-th point and always the final point.
// The final point is not duplicated when the stride already lands on it.
func SimplifyStride(points []GeoPoint, stride int) []GeoPoint {
	if stride <= 1 || len(points) <= 2 {
		out := make([]GeoPoint, len(points))
		copy(out, points)
		return out
	}

	out := make([]GeoPoint, 0, len(points)/stride+2)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	if (len(points)-1)%stride != 0 {
		out = append(out, points[len(points)-1])
	}
	return out
}

// SimplifyTolerance drops intermediate points closer than toleranceMeters to the
// last kept point. Endpoints are always kept.
func SimplifyTolerance(points []GeoPoint, toleranceMeters float64) []GeoPoint {
	if len(points) <= 2 {
		out := make([]GeoPoint, len(points))
		copy(out, points)
		return out
	}

	out := []GeoPoint{points[0]}
	last := points[0]
	for _, p := range points[1 : len(points)-1] {
		if Distance(last, p) > toleranceMeters {
			out = append(out, p)
			last = p
		}
	}
	return append(out, points[len(points)-1])
}

// Nearest is the closest route vertex to a target point
type Nearest struct {
	Point    GeoPoint `json:"point"`
	Index    int      `json:"index"`
	Distance float64  `json:"distance"`
}

// NearestPoint scans points for the vertex closest to target.
// Index is -1 when points is empty.
func NearestPoint(target GeoPoint, points []GeoPoint) Nearest {
	best := Nearest{Index: -1, Distance: math.Inf(1)}
	for i, p := range points {
		if d := Distance(target, p); d < best.Distance {
			best = Nearest{Point: p, Index: i, Distance: d}
		}
	}
	return best
}
