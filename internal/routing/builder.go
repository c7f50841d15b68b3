// Package routing stitches disjoint street segments into longer simulated routes.
//
// The stitcher is a best-effort heuristic for decorative traffic: it does not
// compute shortest paths and does not guarantee connectivity. Do not use it where
// route correctness matters.
package routing

import (
	"math"
	"math/rand"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

// BuildOptions tunes the greedy stitcher
type BuildOptions struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	MinLengthKm float64 `json:"min_length_km"`
	MaxLengthKm float64 `json:"max_length_km"`

	// Seed drives the random start selection; retry with another seed on rejection
	Seed int64 `json:"seed"`
	// StartSegment overrides the random start when set
	StartSegment *int `json:"start_segment,omitempty"`
	// StartCandidates bounds the random start to the first N segments
	StartCandidates int `json:"start_candidates"`

	MaxSegments int `json:"max_segments"`

	// ProximityDegrees is the planar endpoint threshold (~200 m at 0.002)
	ProximityDegrees float64 `json:"proximity_degrees"`
	// ProximityMeters switches to a great-circle threshold when positive
	ProximityMeters float64 `json:"proximity_meters,omitempty"`

	Stride    int `json:"stride"`
	MinPoints int `json:"min_points"`
}

// Defaults
const (
	DefaultMinLengthKm      = 3.0
	DefaultMaxLengthKm      = 10.0
	DefaultStartCandidates  = 20
	DefaultMaxSegments      = 15
	DefaultProximityDegrees = 0.002
	DefaultStride           = 3
	DefaultMinPoints        = 5
)

// DefaultBuildOptions returns the options used for generated transit routes
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		MinLengthKm:      DefaultMinLengthKm,
		MaxLengthKm:      DefaultMaxLengthKm,
		StartCandidates:  DefaultStartCandidates,
		MaxSegments:      DefaultMaxSegments,
		ProximityDegrees: DefaultProximityDegrees,
		Stride:           DefaultStride,
		MinPoints:        DefaultMinPoints,
	}
}

func (o BuildOptions) withDefaults() BuildOptions {
	d := DefaultBuildOptions()
	if o.MaxLengthKm <= 0 {
		o.MaxLengthKm = d.MaxLengthKm
	}
	if o.MinLengthKm < 0 {
		o.MinLengthKm = 0
	}
	if o.StartCandidates <= 0 {
		o.StartCandidates = d.StartCandidates
	}
	if o.MaxSegments <= 0 {
		o.MaxSegments = d.MaxSegments
	}
	if o.ProximityDegrees <= 0 {
		o.ProximityDegrees = d.ProximityDegrees
	}
	if o.Stride <= 0 {
		o.Stride = d.Stride
	}
	if o.MinPoints <= 0 {
		o.MinPoints = d.MinPoints
	}
	if o.ID == "" {
		o.ID = "route"
	}
	return o
}

// BuildRoute greedily stitches segments into one route.
//
// Starting from a random (or given) segment it repeatedly appends the first unused
// segment with an endpoint within the proximity threshold of the current tail,
// oriented so its nearer endpoint connects. It stops when no segment connects, the
// length reaches MaxLengthKm or MaxSegments were used. A route shorter than
// MinLengthKm or with fewer than MinPoints points is rejected with nil.
func BuildRoute(segments []domain.StreetSegment, opts BuildOptions) *domain.Route {
	opts = opts.withDefaults()

	usable := make([]domain.StreetSegment, 0, len(segments))
	for _, s := range segments {
		if len(s.Points) >= 2 {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	start := pickStart(len(usable), opts)
	s := &stitcher{
		segments: usable,
		used:     make(map[int]bool, opts.MaxSegments),
		opts:     opts,
	}

	current, polyline := start, usable[start].Points
	class := usable[start].Classification()
	for s.totalKm < opts.MaxLengthKm && len(s.used) < opts.MaxSegments {
		s.appendPolyline(polyline)
		s.used[current] = true
		s.totalKm += geo.PolylineLength(polyline) / 1000
		class = usable[current].Classification()

		if s.totalKm >= opts.MaxLengthKm {
			break
		}
		next, oriented, ok := s.findNext(s.tail())
		if !ok {
			break
		}
		current, polyline = next, oriented
	}

	if s.totalKm < opts.MinLengthKm || len(s.points) < opts.MinPoints {
		return nil
	}

	route, err := domain.NewRoute(opts.ID, opts.Name, class, geo.SimplifyStride(s.points, opts.Stride))
	if err != nil {
		return nil
	}
	return route
}

func pickStart(n int, opts BuildOptions) int {
	if opts.StartSegment != nil && *opts.StartSegment >= 0 && *opts.StartSegment < n {
		return *opts.StartSegment
	}
	candidates := opts.StartCandidates
	if candidates > n {
		candidates = n
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	return rng.Intn(candidates)
}

type stitcher struct {
	segments []domain.StreetSegment
	used     map[int]bool
	opts     BuildOptions
	points   []geo.GeoPoint
	totalKm  float64
}

func (s *stitcher) tail() geo.GeoPoint {
	return s.points[len(s.points)-1]
}

// appendPolyline adds points, dropping a first point that duplicates the tail
func (s *stitcher) appendPolyline(polyline []geo.GeoPoint) {
	if len(s.points) > 0 && len(polyline) > 0 && polyline[0] == s.tail() {
		polyline = polyline[1:]
	}
	s.points = append(s.points, polyline...)
}

// findNext returns the first unused segment touching tail, oriented away from it
func (s *stitcher) findNext(tail geo.GeoPoint) (int, []geo.GeoPoint, bool) {
	for i, seg := range s.segments {
		if s.used[i] {
			continue
		}

		first, last := seg.First(), seg.Last()
		nearFirst, nearLast := s.near(tail, first), s.near(tail, last)
		if !nearFirst && !nearLast {
			continue
		}

		if s.gap(tail, last) < s.gap(tail, first) {
			return i, reversed(seg.Points), true
		}
		return i, seg.Points, true
	}
	return -1, nil, false
}

func (s *stitcher) near(a, b geo.GeoPoint) bool {
	if s.opts.ProximityMeters > 0 {
		return geo.Distance(a, b) < s.opts.ProximityMeters
	}
	return planarDegrees(a, b) < s.opts.ProximityDegrees
}

func (s *stitcher) gap(a, b geo.GeoPoint) float64 {
	if s.opts.ProximityMeters > 0 {
		return geo.Distance(a, b)
	}
	return planarDegrees(a, b)
}

// planarDegrees is the Euclidean distance in raw degrees. It is latitude dependent
// and only meant as a cheap endpoint-proximity test.
func planarDegrees(a, b geo.GeoPoint) float64 {
	return math.Hypot(b.Lat-a.Lat, b.Lon-a.Lon)
}

func reversed(points []geo.GeoPoint) []geo.GeoPoint {
	out := make([]geo.GeoPoint, len(points))
	for i, p := range points {
		out[len(points)-1-i] = p
	}
	return out
}
