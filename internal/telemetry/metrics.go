package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/smartcity/mobility"

// Instruments are the counters and histograms recorded by the engine
type Instruments struct {
	// FramesTotal counts scheduler frames
	FramesTotal metric.Int64Counter
	// EntitiesDeactivated counts entities removed after a per-entity failure
	EntitiesDeactivated metric.Int64Counter
	// EntitiesArrived counts one-shot arrivals
	EntitiesArrived metric.Int64Counter

	// WorkerRequests counts delegated requests by type and outcome
	WorkerRequests metric.Int64Counter
	// WorkerDuration measures delegated request latency
	WorkerDuration metric.Float64Histogram

	// RoutesBuilt counts stitched routes by outcome (built, rejected, fallback)
	RoutesBuilt metric.Int64Counter
	// IngestSkipped counts malformed upstream records dropped at ingestion
	IngestSkipped metric.Int64Counter
}

var (
	instrumentsOnce sync.Once
	instruments     *Instruments
)

// Metrics returns the process-wide instruments. They are created from the global
// meter, which delegates to the SDK provider once InitMetrics installs it.
func Metrics() *Instruments {
	instrumentsOnce.Do(func() {
		instruments = newInstruments(otel.Meter(meterName))
	})
	return instruments
}

func newInstruments(m metric.Meter) *Instruments {
	return &Instruments{
		FramesTotal:         counter(m, "animation.frames.total", "Number of animation frames processed", "{frame}"),
		EntitiesDeactivated: counter(m, "animation.entities.deactivated", "Entities deactivated after a failure", "{entity}"),
		EntitiesArrived:     counter(m, "animation.entities.arrived", "One-shot entities that reached the end of their route", "{entity}"),
		WorkerRequests:      counter(m, "worker.requests.total", "Delegated geometry requests by type and outcome", "{request}"),
		WorkerDuration: histogram(m, "worker.request.duration", "Duration of delegated geometry requests", "s",
			0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10),
		RoutesBuilt:   counter(m, "routing.routes.total", "Stitched routes by outcome", "{route}"),
		IngestSkipped: counter(m, "ingest.records.skipped", "Malformed street-graph records dropped at ingestion", "{record}"),
	}
}

// counter falls back to a no-op instrument so callers never see nil
func counter(m metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil || c == nil {
		slog.Warn("Failed to create instrument", "name", name, "error", err)
		c, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter(name)
	}
	return c
}

func histogram(m metric.Meter, name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	h, err := m.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	if err != nil || h == nil {
		slog.Warn("Failed to create instrument", "name", name, "error", err)
		h, _ = noop.NewMeterProvider().Meter(meterName).Float64Histogram(name)
	}
	return h
}

// InitMetrics installs an OTLP/HTTP meter provider when OTEL_METRICS_ENABLED is set.
// Returns a shutdown function that should be called on application exit.
func InitMetrics() (func(), error) {
	if !IsMetricsEnabled() {
		slog.Debug("OpenTelemetry metrics is disabled")
		return func() {}, nil
	}

	cfg := GetExporterConfig()
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
		otlpmetrichttp.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		slog.Warn("Failed to create OTLP metric exporter, using noop", "error", err)
		return func() {}, nil
	}

	res, err := newResource()
	if err != nil {
		slog.Warn("Failed to create resource, using noop", "error", err)
		return func() {}, nil
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(60*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	slog.Debug("OpenTelemetry metrics initialized", "endpoint", cfg.Endpoint)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down meter provider", "error", err)
		}
	}, nil
}
