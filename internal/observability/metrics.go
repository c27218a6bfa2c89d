package observability

import (
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments used by the keyportal server.
// Instruments are created once at startup and shared with middleware,
// handlers, and service components.
type Metrics struct {
	// HTTP metrics
	HTTPRequestDuration otelmetric.Float64Histogram
	HTTPRequestTotal    otelmetric.Int64Counter
	HTTPRequestErrors   otelmetric.Int64Counter

	// Key resolution metrics
	Resolutions        otelmetric.Int64Counter
	UpstreamLatency    otelmetric.Float64Histogram
	SingleflightShared otelmetric.Int64Counter

	// Key event metrics
	EventsPublished otelmetric.Int64Counter
	EventsFailed    otelmetric.Int64Counter

	// Profile view metrics
	ProfileRenders otelmetric.Int64Counter
}

// NewMetrics creates all metric instruments from the given Meter.
func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.request.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestTotal, err = meter.Int64Counter(
		"http.request.total",
		otelmetric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestErrors, err = meter.Int64Counter(
		"http.request.errors",
		otelmetric.WithDescription("HTTP request errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, err
	}

	// Key resolution metrics
	m.Resolutions, err = meter.Int64Counter(
		"apikey.resolutions",
		otelmetric.WithDescription("API key resolutions by outcome (existing, created, error)"),
	)
	if err != nil {
		return nil, err
	}

	m.UpstreamLatency, err = meter.Float64Histogram(
		"apikey.upstream.latency",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Key directory call latency in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.SingleflightShared, err = meter.Int64Counter(
		"apikey.singleflight.shared",
		otelmetric.WithDescription("Resolutions that joined an in-flight resolution for the same issuer"),
	)
	if err != nil {
		return nil, err
	}

	// Key event metrics
	m.EventsPublished, err = meter.Int64Counter(
		"apikey.events.published",
		otelmetric.WithDescription("Key lifecycle events published"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsFailed, err = meter.Int64Counter(
		"apikey.events.failed",
		otelmetric.WithDescription("Key lifecycle events that failed to publish"),
	)
	if err != nil {
		return nil, err
	}

	// Profile view metrics
	m.ProfileRenders, err = meter.Int64Counter(
		"profile.renders",
		otelmetric.WithDescription("Profile page renders by token state"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
