// Package telemetry exposes OpenTelemetry metrics through a Prometheus endpoint.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MeterName scopes every instrument.
const MeterName = "github.com/hpungsan/showcase"

// Telemetry owns the meter provider and the registry it exports to. Each
// instance has its own registry, so several can coexist in one process.
type Telemetry struct {
	Meter metric.Meter

	registry  *prometheus.Registry
	provider  *sdkmetric.MeterProvider
	requests  metric.Int64Counter
	duration  metric.Float64Histogram
	mutations metric.Int64Counter
	logger    *zap.Logger
}

// NewTelemetry builds the meter provider and registers the instruments.
func NewTelemetry(logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(MeterName)

	requests, err := meter.Int64Counter("http_requests",
		metric.WithDescription("HTTP requests handled, by route and status."))
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	duration, err := meter.Float64Histogram("http_request_duration",
		metric.WithDescription("HTTP request latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}
	mutations, err := meter.Int64Counter("gallery_mutations",
		metric.WithDescription("Successful gallery mutations, by action."))
	if err != nil {
		return nil, fmt.Errorf("failed to create mutation counter: %w", err)
	}

	logger.Named("telemetry").Info("metrics initialized", zap.String("meter", MeterName))

	return &Telemetry{
		Meter:     meter,
		registry:  registry,
		provider:  provider,
		requests:  requests,
		duration:  duration,
		mutations: mutations,
		logger:    logger.Named("telemetry"),
	}, nil
}

// Handler serves the Prometheus exposition for this instance.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts one finished HTTP request. route is the matched
// route template, not the raw path, to keep label cardinality bounded.
func (t *Telemetry) RecordRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	t.requests.Add(ctx, 1, attrs)
	t.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordMutation counts one successful mutation.
func (t *Telemetry) RecordMutation(ctx context.Context, action string) {
	t.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
