// Package observability provides OpenTelemetry-based metrics instrumentation
// with a Prometheus exporter for the keyportal server.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Module holds the OTel MeterProvider together with the instruments built
// from it. It is the central entry point for observability setup.
type Module struct {
	provider *sdkmetric.MeterProvider
	meter    otelmetric.Meter
	metrics  *Metrics
}

// New creates a new observability Module backed by a Prometheus exporter and
// registers its MeterProvider as the global OTel MeterProvider. The
// serviceName is used as the meter scope name.
func New(serviceName string) (*Module, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	m, err := newModule(serviceName, exporter)
	if err != nil {
		return nil, err
	}

	otel.SetMeterProvider(m.provider)
	return m, nil
}

// newModule builds a Module around an arbitrary metric reader. Tests use a
// ManualReader to inspect recorded data.
func newModule(serviceName string, reader sdkmetric.Reader) (*Module, error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	meter := provider.Meter(serviceName)

	metrics, err := NewMetrics(meter)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create metric instruments: %w", err)
	}

	return &Module{
		provider: provider,
		meter:    meter,
		metrics:  metrics,
	}, nil
}

// Shutdown gracefully shuts down the MeterProvider, flushing any remaining
// metric data.
func (m *Module) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics
// in the standard exposition format.
func (m *Module) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RegisterRoutes mounts GET /metrics on the given ServeMux.
func (m *Module) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /metrics", m.MetricsHandler())
}

// Meter returns the OTel Meter for creating additional instruments.
func (m *Module) Meter() otelmetric.Meter {
	return m.meter
}

// Metrics returns the shared instrument set.
func (m *Module) Metrics() *Metrics {
	return m.metrics
}
