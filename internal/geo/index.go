package geo

// LengthIndex caches per-segment lengths and their prefix sums for one route.
// It is built once per route and never mutated.
type LengthIndex struct {
	SegmentLengths    []float64 `json:"segment_lengths"`
	CumulativeLengths []float64 `json:"cumulative_lengths"`
	TotalLength       float64   `json:"total_length"`
}

// BuildLengthIndex computes the length index of a polyline in O(n).
func BuildLengthIndex(points []GeoPoint) (LengthIndex, error) {
	if err := ValidatePoints(points); err != nil {
		return LengthIndex{}, err
	}

	idx := LengthIndex{
		SegmentLengths:    make([]float64, len(points)-1),
		CumulativeLengths: make([]float64, len(points)),
	}

	var running float64
	for i := 0; i < len(points)-1; i++ {
		length := Distance(points[i], points[i+1])
		idx.SegmentLengths[i] = length
		running += length
		idx.CumulativeLengths[i+1] = running
	}
	idx.TotalLength = running

	return idx, nil
}

// DistanceAt converts a normalized progress into meters along the route
func (idx LengthIndex) DistanceAt(progress float64) float64 {
	return progress * idx.TotalLength
}
