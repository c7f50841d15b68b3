package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smartcity/mobility/internal/ingest"
	"github.com/smartcity/mobility/internal/service"
	"github.com/smartcity/mobility/internal/worker"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "SQLITE_PATH", "WORKER_TIMEOUT", "ROUTE_COUNT",
		"ROUTE_MIN_KM", "ROUTE_MAX_KM", "STREETS_COORD_ORDER", "ROUTES_COORD_ORDER"} {
		t.Setenv(key, "")
	}

	cfg := loadConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, worker.DefaultTimeout, cfg.WorkerTimeout)
	assert.Equal(t, service.DefaultCatalogConfig(), cfg.Catalog)
	assert.Equal(t, ingest.LonLat, cfg.CoordOrder)
	assert.Equal(t, ingest.LatLon, cfg.RoutesCoordOrder)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_TIMEOUT", "250ms")
	t.Setenv("ROUTE_COUNT", "6")
	t.Setenv("ROUTE_MIN_KM", "2.5")
	t.Setenv("ROUTE_MAX_KM", "not-a-number")
	t.Setenv("STREETS_COORD_ORDER", "latlon")

	cfg := loadConfig()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.WorkerTimeout)
	assert.Equal(t, 6, cfg.Catalog.RouteCount)
	assert.Equal(t, 2.5, cfg.Catalog.MinLengthKm)
	assert.Equal(t, service.DefaultCatalogConfig().MaxLengthKm, cfg.Catalog.MaxLengthKm)
	assert.Equal(t, ingest.LatLon, cfg.CoordOrder)
}

func TestGetEnvDuration_RejectsNonPositive(t *testing.T) {
	t.Setenv("WORKER_TIMEOUT", "-1s")
	assert.Equal(t, time.Second, getEnvDuration("WORKER_TIMEOUT", time.Second))
}
