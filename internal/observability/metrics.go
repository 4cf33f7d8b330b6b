package observability

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages all metrics for the skill runtime
type MetricsCollector struct {
	meter metric.Meter

	// Routing metrics
	routeRequests metric.Int64Counter
	routeFailures metric.Int64Counter
	routeLatency  metric.Float64Histogram

	// Inference metrics
	sessionsCreated metric.Int64Counter
	inferenceErrors metric.Int64Counter

	// Update metrics
	manifestChecks   metric.Int64Counter
	manifestVerified metric.Int64Counter

	// Server for Prometheus scraping
	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("aria")

	routeRequests, err := meter.Int64Counter(
		"aria.route.requests.total",
		metric.WithDescription("Total number of skill routing requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create route_requests counter: %w", err)
	}

	routeFailures, err := meter.Int64Counter(
		"aria.route.failures.total",
		metric.WithDescription("Total number of failed skill routing requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create route_failures counter: %w", err)
	}

	routeLatency, err := meter.Float64Histogram(
		"aria.route.latency",
		metric.WithDescription("Skill routing latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create route_latency histogram: %w", err)
	}

	sessionsCreated, err := meter.Int64Counter(
		"aria.inference.sessions.created",
		metric.WithDescription("Inference sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions_created counter: %w", err)
	}

	inferenceErrors, err := meter.Int64Counter(
		"aria.inference.errors.total",
		metric.WithDescription("Inference backend errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference_errors counter: %w", err)
	}

	manifestChecks, err := meter.Int64Counter(
		"aria.update.manifest.checks",
		metric.WithDescription("Update manifest fetch attempts"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest_checks counter: %w", err)
	}

	manifestVerified, err := meter.Int64Counter(
		"aria.update.manifest.verified",
		metric.WithDescription("Update manifests that passed signature verification"),
		metric.WithUnit("{manifest}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest_verified counter: %w", err)
	}

	mc := &MetricsCollector{
		meter:            meter,
		routeRequests:    routeRequests,
		routeFailures:    routeFailures,
		routeLatency:     routeLatency,
		sessionsCreated:  sessionsCreated,
		inferenceErrors:  inferenceErrors,
		manifestChecks:   manifestChecks,
		manifestVerified: manifestVerified,
	}

	if config.PrometheusPort > 0 {
		mc.startPrometheusServer(config.PrometheusPort)
	}

	return mc, nil
}

// startPrometheusServer starts the /metrics scrape endpoint
func (mc *MetricsCollector) startPrometheusServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())

	mc.prometheusServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := mc.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("prometheus server error: %v", err)
		}
	}()
}

// RecordRoute records a routing call outcome and its latency
func (mc *MetricsCollector) RecordRoute(ctx context.Context, skillID string, success bool, duration time.Duration) {
	if mc == nil || mc.routeRequests == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("skill_id", skillID),
		attribute.Bool("success", success),
	)

	mc.routeRequests.Add(ctx, 1, attrs)
	if !success {
		mc.routeFailures.Add(ctx, 1, attrs)
	}
	mc.routeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordSessionCreated records a lazy inference session creation
func (mc *MetricsCollector) RecordSessionCreated(ctx context.Context, skillID string) {
	if mc == nil || mc.sessionsCreated == nil {
		return
	}
	mc.sessionsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("skill_id", skillID)))
}

// RecordInferenceError records a backend execution failure
func (mc *MetricsCollector) RecordInferenceError(ctx context.Context, skillID string) {
	if mc == nil || mc.inferenceErrors == nil {
		return
	}
	mc.inferenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("skill_id", skillID)))
}

// RecordManifestCheck records one update worker fetch attempt
func (mc *MetricsCollector) RecordManifestCheck(ctx context.Context, verified bool) {
	if mc == nil || mc.manifestChecks == nil {
		return
	}
	mc.manifestChecks.Add(ctx, 1)
	if verified {
		mc.manifestVerified.Add(ctx, 1)
	}
}

// Shutdown stops the Prometheus scrape endpoint
func (mc *MetricsCollector) Shutdown(ctx context.Context) error {
	if mc == nil || mc.prometheusServer == nil {
		return nil
	}
	return mc.prometheusServer.Shutdown(ctx)
}
