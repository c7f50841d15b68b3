package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"

	"github.com/smartcity/mobility/internal/animation"
	"github.com/smartcity/mobility/internal/dispatch"
	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/ingest"
	"github.com/smartcity/mobility/internal/repository/postgres"
	"github.com/smartcity/mobility/internal/repository/sqlite"
	"github.com/smartcity/mobility/internal/service"
	"github.com/smartcity/mobility/internal/worker"
	"github.com/smartcity/mobility/pkg/logging"
)

// defaultTransitSpeed is used for the generated bus fleet
const defaultTransitSpeed = 35.0

type options struct {
	streets   string
	order     string
	routes    string
	vehicles  string
	sqlite    string
	logFile   string
	seed      int64
	paused    bool
	noFleet   bool
	trailSize int
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.streets, "streets", os.Getenv("STREETS_GEOJSON"), "street graph file (.geojson or .osm)")
	flag.StringVar(&opts.order, "order", "lonlat", "coordinate order of the street file: lonlat or latlon")
	flag.StringVar(&opts.routes, "routes", os.Getenv("ROUTES_DATASET"), "route dataset JSON")
	flag.StringVar(&opts.vehicles, "vehicles", "", "vehicle dataset JSON")
	flag.StringVar(&opts.sqlite, "sqlite", os.Getenv("SQLITE_PATH"), "SQLite dataset path")
	flag.StringVar(&opts.logFile, "log", "simview.log", "log file; empty discards logs")
	flag.Int64Var(&opts.seed, "seed", 0, "route generation seed")
	flag.BoolVar(&opts.paused, "paused", false, "start paused")
	flag.BoolVar(&opts.noFleet, "no-fleet", false, "do not add emergency vehicles")
	flag.IntVar(&opts.trailSize, "trail", animation.DefaultTrailLength, "trail length in frames")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "simview:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	closeLog, err := initLog(opts.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := worker.Start(ctx, slog.Default())
	defer client.Close()
	delegate := worker.NewDelegate(client, slog.Default())

	routes, err := loadRoutes(ctx, opts, delegate)
	if err != nil {
		return err
	}

	var dispatcher *dispatch.Dispatcher
	scheduler := animation.NewScheduler(
		animation.WithTrailLength(opts.trailSize),
		animation.WithArrival(func(id string) {
			if dispatcher != nil {
				dispatcher.OnArrival(id)
			}
		}),
	)
	dispatcher = dispatch.New(scheduler, routes)

	entities, err := loadVehicles(opts, routes)
	if err != nil {
		return err
	}
	for _, e := range entities {
		if err := scheduler.Add(e); err != nil {
			slog.Warn("Skipping vehicle", "id", e.ID, "error", err)
		}
	}
	if !opts.noFleet {
		for _, v := range dispatch.DefaultFleet(routes) {
			if err := dispatcher.AddVehicle(v); err != nil {
				slog.Warn("Skipping emergency vehicle", "id", v.ID, "error", err)
			}
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to init screen: %w", err)
	}
	defer screen.Fini()

	viewer := NewViewer(screen, scheduler, dispatcher, routes)
	defer viewer.Stop()

	if !opts.paused {
		scheduler.Play(ctx)
	}
	viewer.Run(ctx)
	return nil
}

func initLog(path string) (func(), error) {
	if path == "" {
		logging.InitLoggingTo(io.Discard)
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logging.InitLoggingTo(f)
	return func() { _ = f.Close() }, nil
}

// loadRoutes builds the route catalog the same way the server does
func loadRoutes(ctx context.Context, opts options, delegate *worker.Delegate) ([]*domain.Route, error) {
	var repo service.DatasetRepository = postgres.NewMockRepository()
	if opts.sqlite != "" {
		r, err := sqlite.Open(ctx, opts.sqlite)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		repo = r
	}

	var extra []domain.StreetSegment
	if opts.streets != "" {
		order, err := ingest.ParseCoordOrder(opts.order)
		if err != nil {
			return nil, err
		}
		extra, err = ingest.LoadStreetFile(opts.streets, order)
		if err != nil {
			return nil, err
		}
	}

	cfg := service.DefaultCatalogConfig()
	cfg.Seed = opts.seed
	catalog := service.NewRouteCatalog(repo, delegate, cfg, slog.Default())

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := catalog.Load(loadCtx, extra...); err != nil {
		return nil, err
	}
	catalog.WaitBackground()

	if opts.routes != "" {
		data, err := os.ReadFile(opts.routes)
		if err != nil {
			return nil, fmt.Errorf("failed to read route dataset: %w", err)
		}
		routes, err := ingest.ParseRouteDataset(data, ingest.LatLon)
		if err != nil {
			return nil, err
		}
		for _, r := range routes {
			catalog.Add(r)
		}
	}
	return catalog.Routes(), nil
}

// loadVehicles reads the vehicle dataset, or puts one bus on every route
func loadVehicles(opts options, routes []*domain.Route) ([]*domain.Entity, error) {
	if opts.vehicles == "" {
		return transitFleet(routes), nil
	}
	data, err := os.ReadFile(opts.vehicles)
	if err != nil {
		return nil, fmt.Errorf("failed to read vehicle dataset: %w", err)
	}
	records, err := ingest.ParseVehicleDataset(data)
	if err != nil {
		return nil, err
	}
	return ingest.Entities(records, routes), nil
}

func transitFleet(routes []*domain.Route) []*domain.Entity {
	fleet := make([]*domain.Entity, 0, len(routes))
	for i, r := range routes {
		fleet = append(fleet, &domain.Entity{
			ID:       fmt.Sprintf("bus_%d", i+1),
			Name:     r.Name,
			Kind:     domain.KindTransit,
			Route:    r,
			SpeedKmh: defaultTransitSpeed,
			Mode:     domain.ModeLooping,
		})
	}
	return fleet
}
