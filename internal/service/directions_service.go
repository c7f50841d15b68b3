package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"googlemaps.github.io/maps"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

// DirectionsRequest asks for a street route between two points
type DirectionsRequest struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Origin      geo.GeoPoint `json:"origin"`
	Destination geo.GeoPoint `json:"destination"`
	// Mode is a Google travel mode: driving (default), walking, bicycling or transit
	Mode string `json:"mode"`
}

// DirectionsResult is the route returned to clients
type DirectionsResult struct {
	Route  *domain.Route `json:"route"`
	IsMock bool          `json:"is_mock"`
}

// DirectionsService builds routes from the Google Directions API
type DirectionsService struct {
	client  *maps.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewDirectionsService creates a directions source. Without an API key every
// request is answered with a straight mock route.
func NewDirectionsService(apiKey string, logger *slog.Logger, opts ...maps.ClientOption) *DirectionsService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DirectionsService{timeout: 10 * time.Second, logger: logger}
	if apiKey == "" {
		return s
	}

	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		logger.Warn("Directions client disabled", "error", err)
		return s
	}
	s.client = client
	return s
}

// Enabled reports whether a Google client is configured
func (s *DirectionsService) Enabled() bool {
	return s.client != nil
}

// Route fetches directions and decodes the overview polyline into a Route
func (s *DirectionsService) Route(ctx context.Context, req DirectionsRequest) (DirectionsResult, error) {
	if err := req.Origin.Validate(); err != nil {
		return DirectionsResult{}, fmt.Errorf("directions: origin: %w", err)
	}
	if err := req.Destination.Validate(); err != nil {
		return DirectionsResult{}, fmt.Errorf("directions: destination: %w", err)
	}
	if req.ID == "" {
		req.ID = "ruta_directions"
	}
	if req.Name == "" {
		req.Name = req.ID
	}

	// Return mock data if no API key
	if s.client == nil {
		return s.mockRoute(req)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	mode := maps.TravelModeDriving
	if req.Mode != "" {
		mode = maps.Mode(req.Mode)
	}

	routes, _, err := s.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLng(req.Origin),
		Destination: latLng(req.Destination),
		Mode:        mode,
	})
	if err != nil {
		// Fallback to mock on network or API error
		s.logger.Warn("Directions request failed, using mock route", "error", err)
		return s.mockRoute(req)
	}
	if len(routes) == 0 {
		return s.mockRoute(req)
	}

	decoded, err := routes[0].OverviewPolyline.Decode()
	if err != nil {
		return DirectionsResult{}, fmt.Errorf("directions: failed to decode polyline: %w", err)
	}

	points := make([]geo.GeoPoint, 0, len(decoded))
	for _, ll := range decoded {
		points = append(points, geo.GeoPoint{Lat: ll.Lat, Lon: ll.Lng})
	}

	route, err := domain.NewRoute(req.ID, req.Name, domain.ClassPrimary, points)
	if err != nil {
		return s.mockRoute(req)
	}
	return DirectionsResult{Route: route}, nil
}

// mockRoute returns a straight route through the midpoint
func (s *DirectionsService) mockRoute(req DirectionsRequest) (DirectionsResult, error) {
	mid := geo.GeoPoint{
		Lat: (req.Origin.Lat + req.Destination.Lat) / 2,
		Lon: (req.Origin.Lon + req.Destination.Lon) / 2,
	}
	route, err := domain.NewRoute(req.ID, req.Name, domain.ClassTertiary,
		[]geo.GeoPoint{req.Origin, mid, req.Destination})
	if err != nil {
		return DirectionsResult{}, fmt.Errorf("directions: failed to build mock route: %w", err)
	}
	return DirectionsResult{Route: route, IsMock: true}, nil
}

func latLng(p geo.GeoPoint) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lon)
}
