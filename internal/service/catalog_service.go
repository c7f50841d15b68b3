package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/routing"
	"github.com/smartcity/mobility/internal/telemetry"
	"github.com/smartcity/mobility/internal/worker"
)

// Route sources reported by RouteCatalog.Source
const (
	SourceGenerated = "generated"
	SourceDataset   = "dataset"
	SourceFallback  = "fallback"
)

// CatalogConfig controls route generation
type CatalogConfig struct {
	// RouteCount is how many routes to stitch from the street graph
	RouteCount int
	MinLengthKm float64
	MaxLengthKm float64
	// Attempts bounds the seeds tried per route before giving up on it
	Attempts int
	// Seed is the base seed; attempt k of route i uses Seed + i*Attempts + k
	Seed int64
}

// DefaultCatalogConfig generates four routes between 3 and 10 km
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		RouteCount:  len(domain.RouteNames),
		MinLengthKm: routing.DefaultMinLengthKm,
		MaxLengthKm: routing.DefaultMaxLengthKm,
		Attempts:    10,
	}
}

// RouteCatalog owns the routes served to clients: routes stitched from the street
// graph, then dataset routes, then the hardcoded fallback routes when nothing else
// is usable. Routes are immutable once in the catalog.
type RouteCatalog struct {
	repo     DatasetRepository
	delegate *worker.Delegate
	cfg      CatalogConfig
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.Instruments

	mu       sync.RWMutex
	routes   []*domain.Route
	byID     map[string]*domain.Route
	segments []domain.StreetSegment
	source   string

	wgBg sync.WaitGroup // tracks background saves for graceful shutdown
}

// NewRouteCatalog creates an empty catalog; call Load to fill it
func NewRouteCatalog(repo DatasetRepository, delegate *worker.Delegate, cfg CatalogConfig, logger *slog.Logger) *RouteCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	if delegate == nil {
		delegate = worker.NewDelegate(nil, logger)
	}
	if cfg.RouteCount <= 0 {
		cfg.RouteCount = DefaultCatalogConfig().RouteCount
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultCatalogConfig().Attempts
	}
	return &RouteCatalog{
		repo:     repo,
		delegate: delegate,
		cfg:      cfg,
		logger:   logger,
		tracer:   telemetry.Tracer("github.com/smartcity/mobility/internal/service"),
		metrics:  telemetry.Metrics(),
		byID:     make(map[string]*domain.Route),
	}
}

// WaitBackground blocks until all background save goroutines complete.
func (c *RouteCatalog) WaitBackground() {
	c.wgBg.Wait()
}

// Load fetches the street graph and dataset routes concurrently, stitches the
// configured number of routes and replaces the catalog contents. Extra segments
// (for example from a local GeoJSON file) are added to the repository graph.
func (c *RouteCatalog) Load(ctx context.Context, extra ...domain.StreetSegment) error {
	ctx, span := c.tracer.Start(ctx, "catalog.load")
	defer span.End()

	var (
		segments []domain.StreetSegment
		dataset  []*domain.Route
		wg       sync.WaitGroup
		mu       sync.Mutex
		errs     []error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s, err := c.repo.ListStreetSegments(ctx)
		mu.Lock()
		if err != nil {
			errs = append(errs, err)
		} else {
			segments = s
		}
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		r, err := c.repo.ListRoutes(ctx)
		mu.Lock()
		if err != nil {
			errs = append(errs, err)
		} else {
			dataset = r
		}
		mu.Unlock()
	}()

	wg.Wait()

	for _, err := range errs {
		c.logger.Warn("Dataset fetch error", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("catalog: failed to load: %w", err)
	}

	segments = append(segments, extra...)
	generated := c.generate(ctx, segments)

	routes := make([]*domain.Route, 0, len(generated)+len(dataset))
	seen := make(map[string]bool)
	for _, r := range append(generated, dataset...) {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		routes = append(routes, r)
	}

	source := SourceGenerated
	switch {
	case len(generated) > 0:
	case len(dataset) > 0:
		source = SourceDataset
	default:
		source = SourceFallback
		routes = domain.FallbackRoutes()
		c.metrics.RoutesBuilt.Add(ctx, int64(len(routes)),
			metric.WithAttributes(attribute.String("outcome", SourceFallback)))
	}

	c.mu.Lock()
	c.routes = routes
	c.byID = make(map[string]*domain.Route, len(routes))
	for _, r := range routes {
		c.byID[r.ID] = r
	}
	c.segments = segments
	c.source = source
	c.mu.Unlock()

	span.SetAttributes(
		attribute.Int("segments", len(segments)),
		attribute.Int("routes", len(routes)),
		attribute.String("source", source),
	)
	c.logger.Info("Route catalog loaded",
		"segments", len(segments), "generated", len(generated), "dataset", len(dataset), "source", source)

	c.persist(generated)
	return nil
}

// generate stitches cfg.RouteCount routes, retrying each with new seeds
func (c *RouteCatalog) generate(ctx context.Context, segments []domain.StreetSegment) []*domain.Route {
	if len(segments) == 0 {
		return nil
	}

	var routes []*domain.Route
	for i := 0; i < c.cfg.RouteCount; i++ {
		opts := routing.DefaultBuildOptions()
		opts.ID = fmt.Sprintf("ruta_osm_%d", i+1)
		opts.Name = domain.RouteNames[i%len(domain.RouteNames)]
		if c.cfg.MinLengthKm > 0 {
			opts.MinLengthKm = c.cfg.MinLengthKm
		}
		if c.cfg.MaxLengthKm > 0 {
			opts.MaxLengthKm = c.cfg.MaxLengthKm
		}

		for attempt := 0; attempt < c.cfg.Attempts; attempt++ {
			opts.Seed = c.cfg.Seed + int64(i*c.cfg.Attempts+attempt)
			route, err := c.delegate.Stitch(ctx, segments, opts)
			if err != nil {
				c.logger.Warn("Route stitching failed", "route", opts.ID, "error", err)
				break
			}
			if route == nil {
				c.metrics.RoutesBuilt.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "rejected")))
				continue
			}
			c.metrics.RoutesBuilt.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "built")))
			routes = append(routes, route)
			break
		}
	}
	return routes
}

// persist saves generated routes in the background when the repository supports it
func (c *RouteCatalog) persist(routes []*domain.Route) {
	writer, ok := c.repo.(domain.RouteWriter)
	if !ok || len(routes) == 0 {
		return
	}

	c.wgBg.Add(1)
	go func() {
		defer c.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := writer.SaveRoutes(bgCtx, routes); err != nil {
			c.logger.Warn("Failed to save generated routes", "error", err)
		}
	}()
}

// Build stitches a route on demand from the loaded street graph and adds it to
// the catalog, replacing any route with the same id.
func (c *RouteCatalog) Build(ctx context.Context, opts routing.BuildOptions) (*domain.Route, error) {
	c.mu.RLock()
	segments := c.segments
	count := len(c.routes)
	c.mu.RUnlock()

	if len(segments) == 0 {
		return nil, ErrNoStreetGraph
	}
	if opts.ID == "" {
		opts.ID = fmt.Sprintf("ruta_custom_%d", count+1)
	}
	if opts.Name == "" {
		opts.Name = opts.ID
	}

	route, err := c.delegate.Stitch(ctx, segments, opts)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to build route: %w", err)
	}
	if route == nil {
		c.metrics.RoutesBuilt.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "rejected")))
		return nil, ErrRouteRejected
	}
	c.metrics.RoutesBuilt.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "built")))

	c.Add(route)
	return route, nil
}

// Add inserts or replaces a route
func (c *RouteCatalog) Add(route *domain.Route) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[route.ID]; ok {
		for i, r := range c.routes {
			if r.ID == route.ID {
				c.routes[i] = route
			}
		}
	} else {
		c.routes = append(c.routes, route)
	}
	c.byID[route.ID] = route
}

// Routes returns the catalog routes in load order
func (c *RouteCatalog) Routes() []*domain.Route {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*domain.Route, len(c.routes))
	copy(out, c.routes)
	return out
}

// Route returns one route by id
func (c *RouteCatalog) Route(id string) (*domain.Route, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, id)
	}
	return r, nil
}

// Segments returns the loaded street graph
func (c *RouteCatalog) Segments() []domain.StreetSegment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.segments
}

// Source reports where the current routes came from
func (c *RouteCatalog) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Health checks the underlying repository
func (c *RouteCatalog) Health(ctx context.Context) error {
	return c.repo.Health(ctx)
}
