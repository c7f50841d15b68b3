package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "dataset.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_StreetSegments(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	segments := []domain.StreetSegment{
		{ID: "way/1", Name: "Blvd. Kino", Highway: "primary", Points: []geo.GeoPoint{
			{Lat: 29.0729, Lon: -110.9559}, {Lat: 29.0800, Lon: -110.9600},
		}},
		{ID: "way/2", Name: "Calle Rosales", Highway: "secondary", Points: []geo.GeoPoint{
			{Lat: 29.0800, Lon: -110.9600}, {Lat: 29.0890, Lon: -110.9550}, {Lat: 29.0950, Lon: -110.9480},
		}},
	}
	require.NoError(t, repo.SaveStreetSegments(ctx, segments))

	// Upsert replaces by id
	segments[0].Name = "Boulevard Kino"
	require.NoError(t, repo.SaveStreetSegments(ctx, segments[:1]))

	got, err := repo.ListStreetSegments(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Boulevard Kino", got[0].Name)
	assert.Equal(t, segments[1].Points, got[1].Points)
	assert.Equal(t, domain.ClassSecondary, got[1].Classification())
}

func TestRepository_SkipsUnreadableRows(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO street_segments (id, name, highway, geojson) VALUES ('bad', '', 'primary', '{"type":"Point","coordinates":[1,2]}')`)
	require.NoError(t, err)
	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO routes (id, name, classification, color, points_json) VALUES ('bad', '', 'primary', '', '[]')`)
	require.NoError(t, err)

	segments, err := repo.ListStreetSegments(ctx)
	require.NoError(t, err)
	assert.Empty(t, segments)

	routes, err := repo.ListRoutes(ctx)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestRepository_Routes(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveRoutes(ctx, domain.FallbackRoutes()))

	routes, err := repo.ListRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	want := domain.FallbackRoutes()
	for i, r := range routes {
		assert.Equal(t, want[i].ID, r.ID)
		assert.Equal(t, want[i].Classification, r.Classification)
		assert.Equal(t, want[i].Color, r.Color)
		assert.Equal(t, want[i].Points, r.Points)
		assert.InDelta(t, want[i].TotalLength(), r.TotalLength(), 1e-9)
	}

	assert.NoError(t, repo.Health(ctx))
}
