// Package telemetry bootstraps OpenTelemetry tracing and metrics and exposes the
// instruments recorded by the engine. With telemetry disabled every instrument is
// backed by the global no-op provider.
package telemetry

import (
	"os"
	"strings"
	"time"
)

// ServiceName is reported as the OTEL resource service.name
const ServiceName = "smartcity-mobility"

// ServiceVersion is reported as the OTEL resource service.version
const ServiceVersion = "1.0.0"

// ExporterConfig holds the OTLP/HTTP exporter settings for one signal
type ExporterConfig struct {
	Endpoint string
	Insecure bool
	Timeout  time.Duration
}

// IsTracingEnabled returns true if OTEL tracing is enabled
func IsTracingEnabled() bool {
	return isTrue(getEnv("OTEL_TRACING_ENABLED", "false"))
}

// IsMetricsEnabled returns true if OTEL metrics is enabled
func IsMetricsEnabled() bool {
	return isTrue(getEnv("OTEL_METRICS_ENABLED", "false"))
}

// GetExporterConfig resolves OTEL_EXPORTER_OTLP_ENDPOINT into host:port form.
func GetExporterConfig() ExporterConfig {
	endpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	insecure := !strings.HasPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimSuffix(endpoint, "/")

	timeout, err := time.ParseDuration(getEnv("OTEL_EXPORTER_OTLP_TIMEOUT", "10s"))
	if err != nil {
		timeout = 10 * time.Second
	}

	return ExporterConfig{
		Endpoint: endpoint,
		Insecure: insecure,
		Timeout:  timeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func isTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
