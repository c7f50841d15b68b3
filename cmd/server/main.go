package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/smartcity/mobility/internal/delivery/http"
	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/ingest"
	"github.com/smartcity/mobility/internal/repository/postgres"
	"github.com/smartcity/mobility/internal/repository/sqlite"
	"github.com/smartcity/mobility/internal/service"
	"github.com/smartcity/mobility/internal/telemetry"
	"github.com/smartcity/mobility/internal/worker"
	"github.com/smartcity/mobility/pkg/logging"
	"github.com/smartcity/mobility/pkg/profiling"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()
	logging.InitLogging()
	if envErr != nil {
		slog.Debug("No .env file found, using system environment")
	}

	// Configuration
	cfg := loadConfig()

	shutdownTracing, err := telemetry.InitTracing()
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing()

	shutdownMetrics, err := telemetry.InitMetrics()
	if err != nil {
		slog.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer shutdownMetrics()

	defer profiling.InitProfiling("mobility-engine")()

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Dependency Injection: Repositories
	repo, closeRepo := openRepository(rootCtx, cfg)
	defer closeRepo()

	// Geometry worker
	client := worker.Start(rootCtx, slog.Default(), worker.WithTimeout(cfg.WorkerTimeout))
	defer client.Close()
	delegate := worker.NewDelegate(client, slog.Default())

	// Dependency Injection: Services
	catalog := service.NewRouteCatalog(repo, delegate, cfg.Catalog, slog.Default())
	directions := service.NewDirectionsService(cfg.GoogleMapsAPIKey, slog.Default())

	loadCtx, cancelLoad := context.WithTimeout(rootCtx, 30*time.Second)
	if err := catalog.Load(loadCtx, loadStreetFile(cfg)...); err != nil {
		slog.Error("Failed to load route catalog", "error", err)
	}
	cancelLoad()
	addDatasetRoutes(catalog, cfg)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Mobility Engine API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Routes
	http.SetupRoutes(app, catalog, delegate, directions)

	// Graceful shutdown
	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		slog.Warn("Server forced to shutdown", "error", err)
	}
	catalog.WaitBackground()
	slog.Info("Server exited gracefully")
}

// openRepository picks Postgres when reachable, else SQLite when configured, else mock data
func openRepository(ctx context.Context, cfg *Config) (service.DatasetRepository, func()) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(ctx)
		}
		if err == nil {
			repo := postgres.NewPostgresRepository(pool)
			if err = repo.EnsureSchema(ctx); err == nil {
				slog.Info("Connected to PostgreSQL")
				return repo, pool.Close
			}
		}
		if pool != nil {
			pool.Close()
		}
		slog.Warn("Could not connect to database", "error", err)
	}

	if cfg.SQLitePath != "" {
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err == nil {
			slog.Info("Using SQLite dataset", "path", cfg.SQLitePath)
			return repo, func() { _ = repo.Close() }
		}
		slog.Warn("Could not open SQLite dataset", "error", err)
	}

	slog.Info("Running with mock data only")
	return postgres.NewMockRepository(), func() {}
}

// loadStreetFile reads the optional local street graph (GeoJSON or OSM XML)
func loadStreetFile(cfg *Config) []domain.StreetSegment {
	if cfg.StreetsFile == "" {
		return nil
	}
	segments, err := ingest.LoadStreetFile(cfg.StreetsFile, cfg.CoordOrder)
	if err != nil {
		slog.Warn("Failed to load street file", "path", cfg.StreetsFile, "error", err)
		return nil
	}
	slog.Info("Loaded street file", "path", cfg.StreetsFile, "segments", len(segments))
	return segments
}

// addDatasetRoutes adds routes from the optional route dataset JSON
func addDatasetRoutes(catalog *service.RouteCatalog, cfg *Config) {
	if cfg.RoutesFile == "" {
		return
	}
	data, err := os.ReadFile(cfg.RoutesFile)
	if err != nil {
		slog.Warn("Failed to read route dataset", "path", cfg.RoutesFile, "error", err)
		return
	}
	routes, err := ingest.ParseRouteDataset(data, cfg.RoutesCoordOrder)
	if err != nil {
		slog.Warn("Failed to parse route dataset", "path", cfg.RoutesFile, "error", err)
		return
	}
	for _, r := range routes {
		catalog.Add(r)
	}
	slog.Info("Loaded route dataset", "path", cfg.RoutesFile, "routes", len(routes))
}
