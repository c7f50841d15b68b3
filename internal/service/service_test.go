package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/internal/repository/postgres"
	"github.com/smartcity/mobility/internal/routing"
)

// stubRepository serves fixed data and records saved routes
type stubRepository struct {
	segments    []domain.StreetSegment
	routes      []*domain.Route
	segmentsErr error
	routesErr   error

	mu    sync.Mutex
	saved []*domain.Route
}

func (r *stubRepository) ListStreetSegments(ctx context.Context) ([]domain.StreetSegment, error) {
	return r.segments, r.segmentsErr
}

func (r *stubRepository) ListRoutes(ctx context.Context) ([]*domain.Route, error) {
	return r.routes, r.routesErr
}

func (r *stubRepository) Health(ctx context.Context) error { return nil }

func (r *stubRepository) SaveRoutes(ctx context.Context, routes []*domain.Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, routes...)
	return nil
}

func TestRouteCatalog_GeneratesFromStreetGraph(t *testing.T) {
	catalog := NewRouteCatalog(postgres.NewMockRepository(), nil, DefaultCatalogConfig(), nil)
	require.NoError(t, catalog.Load(context.Background()))

	assert.Equal(t, SourceGenerated, catalog.Source())

	routes := catalog.Routes()
	// Generated routes come first, then the repository routes
	require.Len(t, routes, len(domain.RouteNames)+2)
	for i, name := range domain.RouteNames {
		r := routes[i]
		assert.Equal(t, fmt.Sprintf("ruta_osm_%d", i+1), r.ID)
		assert.Equal(t, name, r.Name)
		assert.GreaterOrEqual(t, r.LengthKm(), routing.DefaultMinLengthKm)
		assert.GreaterOrEqual(t, len(r.Points), routing.DefaultMinPoints)
	}

	r, err := catalog.Route("ruta_osm_1")
	require.NoError(t, err)
	assert.Same(t, routes[0], r)

	_, err = catalog.Route("missing")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestRouteCatalog_IsDeterministicForSeed(t *testing.T) {
	load := func() []*domain.Route {
		cfg := DefaultCatalogConfig()
		cfg.Seed = 42
		c := NewRouteCatalog(postgres.NewMockRepository(), nil, cfg, nil)
		require.NoError(t, c.Load(context.Background()))
		return c.Routes()
	}

	a, b := load(), load()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Points, b[i].Points)
	}
}

func TestRouteCatalog_Fallbacks(t *testing.T) {
	dataset := domain.FallbackRoutes()[:1]

	tests := []struct {
		name       string
		repo       *stubRepository
		wantSource string
		wantIDs    []string
	}{
		{
			name:       "dataset routes when no street graph",
			repo:       &stubRepository{routes: dataset},
			wantSource: SourceDataset,
			wantIDs:    []string{"ruta_fallback_1"},
		},
		{
			name:       "hardcoded routes when repository fails",
			repo:       &stubRepository{segmentsErr: errors.New("down"), routesErr: errors.New("down")},
			wantSource: SourceFallback,
			wantIDs:    []string{"ruta_fallback_1", "ruta_fallback_2"},
		},
		{
			name: "hardcoded routes when graph is too sparse",
			repo: &stubRepository{segments: []domain.StreetSegment{{
				ID: "short", Highway: "primary",
				Points: []geo.GeoPoint{{Lat: 29.07, Lon: -110.95}, {Lat: 29.071, Lon: -110.95}},
			}}},
			wantSource: SourceFallback,
			wantIDs:    []string{"ruta_fallback_1", "ruta_fallback_2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := NewRouteCatalog(tt.repo, nil, DefaultCatalogConfig(), nil)
			require.NoError(t, catalog.Load(context.Background()))
			catalog.WaitBackground()

			assert.Equal(t, tt.wantSource, catalog.Source())
			var ids []string
			for _, r := range catalog.Routes() {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Empty(t, tt.repo.saved)
		})
	}
}

func TestRouteCatalog_SavesGeneratedRoutes(t *testing.T) {
	mock := postgres.NewMockRepository()
	segments, err := mock.ListStreetSegments(context.Background())
	require.NoError(t, err)

	repo := &stubRepository{segments: segments}
	catalog := NewRouteCatalog(repo, nil, DefaultCatalogConfig(), nil)
	require.NoError(t, catalog.Load(context.Background()))
	catalog.WaitBackground()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Len(t, repo.saved, len(domain.RouteNames))
}

func TestRouteCatalog_Build(t *testing.T) {
	catalog := NewRouteCatalog(postgres.NewMockRepository(), nil, DefaultCatalogConfig(), nil)

	// Nothing loaded yet
	_, err := catalog.Build(context.Background(), routing.DefaultBuildOptions())
	assert.ErrorIs(t, err, ErrNoStreetGraph)

	require.NoError(t, catalog.Load(context.Background()))
	before := len(catalog.Routes())

	route, err := catalog.Build(context.Background(), routing.DefaultBuildOptions())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("ruta_custom_%d", before+1), route.ID)
	assert.Len(t, catalog.Routes(), before+1)

	got, err := catalog.Route(route.ID)
	require.NoError(t, err)
	assert.Same(t, route, got)

	// Same id replaces in place
	opts := routing.DefaultBuildOptions()
	opts.ID = route.ID
	opts.Seed = 7
	replaced, err := catalog.Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, catalog.Routes(), before+1)
	got, err = catalog.Route(route.ID)
	require.NoError(t, err)
	assert.Same(t, replaced, got)

	opts = routing.DefaultBuildOptions()
	opts.MinLengthKm = 500
	opts.MaxLengthKm = 600
	_, err = catalog.Build(context.Background(), opts)
	assert.ErrorIs(t, err, ErrRouteRejected)
}

func TestDirectionsService_MockWithoutKey(t *testing.T) {
	svc := NewDirectionsService("", nil)
	assert.False(t, svc.Enabled())

	origin := geo.GeoPoint{Lat: 29.0729, Lon: -110.9559}
	dest := geo.GeoPoint{Lat: 29.0900, Lon: -110.9400}

	res, err := svc.Route(context.Background(), DirectionsRequest{Origin: origin, Destination: dest})
	require.NoError(t, err)
	assert.True(t, res.IsMock)
	require.Len(t, res.Route.Points, 3)
	assert.Equal(t, origin, res.Route.Start())
	assert.Equal(t, dest, res.Route.End())
	assert.Equal(t, "ruta_directions", res.Route.ID)

	_, err = svc.Route(context.Background(), DirectionsRequest{Origin: geo.GeoPoint{Lat: 91}, Destination: dest})
	assert.ErrorIs(t, err, geo.ErrCoordinateOutOfRange)
}

func TestDirectionsService_DecodesOverviewPolyline(t *testing.T) {
	path := []maps.LatLng{
		{Lat: 29.07290, Lng: -110.95590},
		{Lat: 29.08000, Lng: -110.95000},
		{Lat: 29.09000, Lng: -110.94000},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		assert.Equal(t, "bicycling", r.URL.Query().Get("mode"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"OK","routes":[{"summary":"Blvd. Kino","overview_polyline":{"points":%q},"legs":[]}]}`,
			maps.Encode(path))
	}))
	defer srv.Close()

	svc := NewDirectionsService("test-key", nil, maps.WithBaseURL(srv.URL))
	require.True(t, svc.Enabled())

	res, err := svc.Route(context.Background(), DirectionsRequest{
		ID:          "ruta_bici",
		Origin:      geo.GeoPoint{Lat: path[0].Lat, Lon: path[0].Lng},
		Destination: geo.GeoPoint{Lat: path[2].Lat, Lon: path[2].Lng},
		Mode:        "bicycling",
	})
	require.NoError(t, err)
	assert.False(t, res.IsMock)
	require.Len(t, res.Route.Points, len(path))
	for i, p := range res.Route.Points {
		assert.InDelta(t, path[i].Lat, p.Lat, 1e-5)
		assert.InDelta(t, path[i].Lng, p.Lon, 1e-5)
	}
	assert.Equal(t, domain.ClassPrimary, res.Route.Classification)
}

func TestDirectionsService_FallsBackOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"REQUEST_DENIED","error_message":"bad key","routes":[]}`)
	}))
	defer srv.Close()

	svc := NewDirectionsService("test-key", nil, maps.WithBaseURL(srv.URL))
	res, err := svc.Route(context.Background(), DirectionsRequest{
		Origin:      geo.GeoPoint{Lat: 29.07, Lon: -110.95},
		Destination: geo.GeoPoint{Lat: 29.08, Lon: -110.94},
	})
	require.NoError(t, err)
	assert.True(t, res.IsMock)
}
