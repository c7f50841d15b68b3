package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hermosillo = []GeoPoint{
	{Lat: 29.0729, Lon: -110.9559},
	{Lat: 29.0800, Lon: -110.9600},
	{Lat: 29.0890, Lon: -110.9550},
	{Lat: 29.0950, Lon: -110.9480},
}

// referenceHaversine is an independent textbook implementation used to check Distance.
func referenceHaversine(a, b GeoPoint) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * 6371000 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b GeoPoint
	}{
		{"city blocks", hermosillo[0], hermosillo[1]},
		{"across town", hermosillo[0], hermosillo[3]},
		{"equator degree", GeoPoint{0, 0}, GeoPoint{0, 1}},
		{"southern hemisphere", GeoPoint{-33.45, -70.66}, GeoPoint{-33.40, -70.60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := referenceHaversine(tt.a, tt.b)
			assert.InDelta(t, want, Distance(tt.a, tt.b), want*1e-9+1e-6)
			assert.InDelta(t, Distance(tt.a, tt.b), Distance(tt.b, tt.a), 1e-9, "distance must be symmetric")
		})
	}
}

func TestDistance_Identity(t *testing.T) {
	for _, p := range hermosillo {
		assert.Equal(t, 0.0, Distance(p, p))
	}
}

func TestGeoPoint_Validate(t *testing.T) {
	assert.NoError(t, GeoPoint{Lat: 90, Lon: -180}.Validate())
	assert.ErrorIs(t, GeoPoint{Lat: 91, Lon: 0}.Validate(), ErrCoordinateOutOfRange)
	assert.ErrorIs(t, GeoPoint{Lat: 0, Lon: 180.5}.Validate(), ErrCoordinateOutOfRange)
	assert.ErrorIs(t, GeoPoint{Lat: math.NaN(), Lon: 0}.Validate(), ErrCoordinateOutOfRange)
}

func TestBuildLengthIndex(t *testing.T) {
	idx, err := BuildLengthIndex(hermosillo)
	require.NoError(t, err)

	require.Len(t, idx.SegmentLengths, len(hermosillo)-1)
	require.Len(t, idx.CumulativeLengths, len(hermosillo))
	assert.Equal(t, 0.0, idx.CumulativeLengths[0])

	var sum float64
	for _, l := range idx.SegmentLengths {
		sum += l
	}
	assert.InDelta(t, sum, idx.TotalLength, 1e-9)
	assert.Equal(t, idx.TotalLength, idx.CumulativeLengths[len(idx.CumulativeLengths)-1])

	for i := 1; i < len(idx.CumulativeLengths); i++ {
		assert.GreaterOrEqual(t, idx.CumulativeLengths[i], idx.CumulativeLengths[i-1])
	}
}

func TestBuildLengthIndex_Invalid(t *testing.T) {
	_, err := BuildLengthIndex(nil)
	assert.ErrorIs(t, err, ErrInvalidRoute)

	_, err = BuildLengthIndex(hermosillo[:1])
	assert.ErrorIs(t, err, ErrInvalidRoute)

	_, err = BuildLengthIndex([]GeoPoint{{Lat: 29, Lon: -110}, {Lat: 95, Lon: -110}})
	assert.ErrorIs(t, err, ErrCoordinateOutOfRange)
}

// Two-point route from the Hermosillo fallback dataset. The Haversine length is
// about 884 m, so 10 m/s for 10 s advances progress by roughly 0.113.
func TestBuildLengthIndex_TwoPointRoute(t *testing.T) {
	points := hermosillo[:2]
	idx, err := BuildLengthIndex(points)
	require.NoError(t, err)

	reference := referenceHaversine(points[0], points[1])
	assert.InEpsilon(t, reference, idx.TotalLength, 0.01)
	assert.InEpsilon(t, 884.33, idx.TotalLength, 0.01)
	assert.InEpsilon(t, 100/reference, 100/idx.TotalLength, 0.01)
}

func TestInterpolate_Boundaries(t *testing.T) {
	idx, err := BuildLengthIndex(hermosillo)
	require.NoError(t, err)

	start := Interpolate(idx, hermosillo, 0)
	assert.Equal(t, hermosillo[0], start.Position)
	assert.Equal(t, 0, start.SegmentIndex)

	end := Interpolate(idx, hermosillo, 1)
	assert.Equal(t, hermosillo[len(hermosillo)-1], end.Position)
	assert.Equal(t, len(hermosillo)-2, end.SegmentIndex)

	beyond := Interpolate(idx, hermosillo, 1.7)
	assert.Equal(t, hermosillo[len(hermosillo)-1], beyond.Position)

	before := Interpolate(idx, hermosillo, -0.2)
	assert.Equal(t, hermosillo[0], before.Position)

	nan := Interpolate(idx, hermosillo, math.NaN())
	assert.Equal(t, hermosillo[0], nan.Position)
}

func TestInterpolate_Vertices(t *testing.T) {
	idx, err := BuildLengthIndex(hermosillo)
	require.NoError(t, err)

	for i := 1; i < len(hermosillo)-1; i++ {
		progress := idx.CumulativeLengths[i] / idx.TotalLength
		s := Interpolate(idx, hermosillo, progress)
		assert.InDelta(t, hermosillo[i].Lat, s.Position.Lat, 1e-9)
		assert.InDelta(t, hermosillo[i].Lon, s.Position.Lon, 1e-9)
	}
}

func TestInterpolate_Midpoint(t *testing.T) {
	points := []GeoPoint{{Lat: 29.0, Lon: -111.0}, {Lat: 29.01, Lon: -111.0}}
	idx, err := BuildLengthIndex(points)
	require.NoError(t, err)

	s := Interpolate(idx, points, 0.5)
	assert.InDelta(t, 29.005, s.Position.Lat, 1e-9)
	assert.InDelta(t, -111.0, s.Position.Lon, 1e-12)
	assert.InDelta(t, 0.0, s.Heading, 1e-12, "due north")
}

func TestInterpolate_Heading(t *testing.T) {
	points := []GeoPoint{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}}
	idx, err := BuildLengthIndex(points)
	require.NoError(t, err)

	s := Interpolate(idx, points, 0.3)
	assert.InDelta(t, math.Pi/2, s.Heading, 1e-12, "due east")
}

func TestInterpolate_ZeroLengthSegment(t *testing.T) {
	points := []GeoPoint{
		{Lat: 29.0, Lon: -111.0},
		{Lat: 29.0, Lon: -111.0},
		{Lat: 29.01, Lon: -111.0},
	}
	idx, err := BuildLengthIndex(points)
	require.NoError(t, err)

	s := Interpolate(idx, points, 0.5)
	assert.Equal(t, 1, s.SegmentIndex)
	assert.False(t, math.IsNaN(s.Position.Lat))
}

func alongRoute(idx LengthIndex, points []GeoPoint, s Sample) float64 {
	return idx.CumulativeLengths[s.SegmentIndex] + Distance(points[s.SegmentIndex], s.Position)
}

func TestInterpolate_Monotonic(t *testing.T) {
	idx, err := BuildLengthIndex(hermosillo)
	require.NoError(t, err)

	prev := 0.0
	for step := 0; step <= 200; step++ {
		p := float64(step) / 200
		d := alongRoute(idx, hermosillo, Interpolate(idx, hermosillo, p))
		assert.GreaterOrEqual(t, d+1e-6, prev, "progress %.3f moved backwards", p)
		prev = d
	}
}

func TestSimplifyStride(t *testing.T) {
	points := make([]GeoPoint, 10)
	for i := range points {
		points[i] = GeoPoint{Lat: 29 + float64(i)*0.001, Lon: -111}
	}

	out := SimplifyStride(points, 3)
	require.Len(t, out, 4)
	assert.Equal(t, points[0], out[0])
	assert.Equal(t, points[9], out[3], "stride landing on the last point must not duplicate it")

	out = SimplifyStride(points[:8], 3)
	require.Len(t, out, 4)
	assert.Equal(t, points[7], out[3])

	assert.Equal(t, points, SimplifyStride(points, 1))
}

func TestSimplifyTolerance(t *testing.T) {
	points := []GeoPoint{
		{Lat: 29.0, Lon: -111.0},
		{Lat: 29.0001, Lon: -111.0}, // ~11 m
		{Lat: 29.001, Lon: -111.0},  // ~111 m
		{Lat: 29.002, Lon: -111.0},
	}
	out := SimplifyTolerance(points, 50)
	assert.Equal(t, []GeoPoint{points[0], points[2], points[3]}, out)
}

func TestNearestPoint(t *testing.T) {
	n := NearestPoint(GeoPoint{Lat: 29.0891, Lon: -110.9551}, hermosillo)
	assert.Equal(t, 2, n.Index)
	assert.Equal(t, hermosillo[2], n.Point)
	assert.Less(t, n.Distance, 20.0)

	assert.Equal(t, -1, NearestPoint(hermosillo[0], nil).Index)
}
