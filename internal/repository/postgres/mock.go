package postgres

import (
	"context"
	"fmt"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

// Street grid used in mock mode: gridSize x gridSize intersections around the
// city center, gridStep degrees apart, each block split at its midpoint.
const (
	gridSize = 7
	gridStep = 0.005
)

// MockRepository implements domain.DatasetRepository for testing/demo mode
type MockRepository struct {
	segments []domain.StreetSegment
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{segments: mockStreetGrid()}
}

// ListStreetSegments returns a small connected street grid
func (r *MockRepository) ListStreetSegments(ctx context.Context) ([]domain.StreetSegment, error) {
	out := make([]domain.StreetSegment, len(r.segments))
	copy(out, r.segments)
	return out, nil
}

// ListRoutes returns the hardcoded fallback routes
func (r *MockRepository) ListRoutes(ctx context.Context) ([]*domain.Route, error) {
	return domain.FallbackRoutes(), nil
}

// SaveRoutes is a no-op in mock mode
func (r *MockRepository) SaveRoutes(ctx context.Context, routes []*domain.Route) error {
	return nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}

// mockStreetGrid lays out avenues (north-south) and streets (east-west).
// The middle avenue and street are primary, the border ring is secondary.
func mockStreetGrid() []domain.StreetSegment {
	half := float64(gridSize-1) / 2
	origin := geo.GeoPoint{
		Lat: domain.CityCenter.Lat - half*gridStep,
		Lon: domain.CityCenter.Lon - half*gridStep,
	}
	at := func(row, col int) geo.GeoPoint {
		return geo.GeoPoint{
			Lat: origin.Lat + float64(row)*gridStep,
			Lon: origin.Lon + float64(col)*gridStep,
		}
	}
	highway := func(line int) string {
		switch line {
		case gridSize / 2:
			return "primary"
		case 0, gridSize - 1:
			return "secondary"
		default:
			return "residential"
		}
	}

	var segments []domain.StreetSegment
	block := func(id, name, hw string, a, b geo.GeoPoint) {
		mid := geo.GeoPoint{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
		segments = append(segments, domain.StreetSegment{
			ID:      id,
			Name:    name,
			Highway: hw,
			Points:  []geo.GeoPoint{a, mid, b},
		})
	}

	for row := 0; row < gridSize; row++ {
		for col := 0; col+1 < gridSize; col++ {
			block(fmt.Sprintf("calle/%d/%d", row, col), fmt.Sprintf("Calle %d", row+1), highway(row),
				at(row, col), at(row, col+1))
		}
	}
	for col := 0; col < gridSize; col++ {
		for row := 0; row+1 < gridSize; row++ {
			block(fmt.Sprintf("avenida/%d/%d", col, row), fmt.Sprintf("Avenida %d", col+1), highway(col),
				at(row, col), at(row+1, col))
		}
	}
	return segments
}
