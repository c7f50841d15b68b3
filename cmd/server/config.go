package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/smartcity/mobility/internal/ingest"
	"github.com/smartcity/mobility/internal/service"
	"github.com/smartcity/mobility/internal/worker"
)

type Config struct {
	Port             string
	DatabaseURL      string
	SQLitePath       string
	StreetsFile      string
	CoordOrder       ingest.CoordOrder
	RoutesFile       string
	RoutesCoordOrder ingest.CoordOrder
	GoogleMapsAPIKey string
	WorkerTimeout    time.Duration
	Catalog          service.CatalogConfig
	Env              string
}

func loadConfig() *Config {
	catalog := service.DefaultCatalogConfig()
	catalog.RouteCount = getEnvInt("ROUTE_COUNT", catalog.RouteCount)
	catalog.MinLengthKm = getEnvFloat("ROUTE_MIN_KM", catalog.MinLengthKm)
	catalog.MaxLengthKm = getEnvFloat("ROUTE_MAX_KM", catalog.MaxLengthKm)
	catalog.Attempts = getEnvInt("ROUTE_ATTEMPTS", catalog.Attempts)
	catalog.Seed = int64(getEnvInt("ROUTE_SEED", 0))

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("SQLITE_PATH", ""),
		StreetsFile:      getEnv("STREETS_GEOJSON", ""),
		CoordOrder:       getEnvOrder("STREETS_COORD_ORDER", ingest.LonLat),
		RoutesFile:       getEnv("ROUTES_DATASET", ""),
		RoutesCoordOrder: getEnvOrder("ROUTES_COORD_ORDER", ingest.LatLon),
		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		WorkerTimeout:    getEnvDuration("WORKER_TIMEOUT", worker.DefaultTimeout),
		Catalog:          catalog,
		Env:              getEnv("GO_ENV", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer, using default", "key", key, "value", raw)
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("Invalid number, using default", "key", key, "value", raw)
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		slog.Warn("Invalid duration, using default", "key", key, "value", raw)
		return defaultValue
	}
	return v
}

func getEnvOrder(key string, defaultValue ingest.CoordOrder) ingest.CoordOrder {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	order, err := ingest.ParseCoordOrder(raw)
	if err != nil {
		slog.Warn("Invalid coordinate order, using default", "key", key, "value", raw)
		return defaultValue
	}
	return order
}
