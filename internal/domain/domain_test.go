package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/mobility/internal/geo"
)

func TestClassifyHighway(t *testing.T) {
	tests := []struct {
		highway string
		want    Classification
	}{
		{"primary", ClassPrimary},
		{"primary_link", ClassPrimary},
		{"trunk", ClassPrimary},
		{"secondary", ClassSecondary},
		{"secondary_link", ClassSecondary},
		{"tertiary", ClassTertiary},
		{"residential", ClassTertiary},
		{"", ClassTertiary},
	}

	for _, tt := range tests {
		t.Run(tt.highway, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyHighway(tt.highway))
		})
	}
}

func TestNewRoute(t *testing.T) {
	points := []geo.GeoPoint{{Lat: 29.0729, Lon: -110.9559}, {Lat: 29.0800, Lon: -110.9600}}
	r, err := NewRoute("r1", "Centro", ClassPrimary, points)
	require.NoError(t, err)

	assert.Greater(t, r.TotalLength(), 0.0)
	assert.Equal(t, points[0], r.PositionAt(0).Position)
	assert.Equal(t, points[1], r.PositionAt(1).Position)

	points[0].Lat = 0
	assert.Equal(t, 29.0729, r.Points[0].Lat, "route keeps its own copy of the points")
}

func TestNewRoute_Invalid(t *testing.T) {
	_, err := NewRoute("r1", "single", ClassPrimary, []geo.GeoPoint{{Lat: 29, Lon: -110}})
	assert.ErrorIs(t, err, geo.ErrInvalidRoute)
}

func TestRoute_Truncate(t *testing.T) {
	r, err := NewRoute("r1", "Centro", ClassSecondary, []geo.GeoPoint{
		{Lat: 29.0729, Lon: -110.9559},
		{Lat: 29.0800, Lon: -110.9600},
		{Lat: 29.0890, Lon: -110.9550},
	})
	require.NoError(t, err)

	short, err := r.Truncate("r1-short", 1)
	require.NoError(t, err)
	assert.Len(t, short.Points, 2)
	assert.Less(t, short.TotalLength(), r.TotalLength())

	_, err = r.Truncate("bad", 0)
	assert.ErrorIs(t, err, geo.ErrInvalidRoute)
}

func TestParseClassification(t *testing.T) {
	assert.Equal(t, ClassPrimary, ParseClassification("primary"))
	assert.Equal(t, ClassTertiary, ParseClassification("unknown"))
}
