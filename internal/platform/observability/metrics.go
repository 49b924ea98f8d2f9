package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Metrics holds all application metrics
type Metrics struct {
	meter metric.Meter

	// Freshness store metrics
	CacheHits        metric.Int64Counter
	CacheMisses      metric.Int64Counter
	CacheStaleServes metric.Int64Counter
	CacheEvictions   metric.Int64Counter
	CacheSize        metric.Int64Gauge

	// Coalescer / SWR metrics
	CoalescedFetches     metric.Int64Counter
	FetchDuration        metric.Float64Histogram
	RevalidationFailures metric.Int64Counter
	RevalidationsDropped metric.Int64Counter

	// Price resolution metrics
	PriceResolutions metric.Int64Counter // attribute: source
	PriceUnresolved  metric.Int64Counter

	// Provider metrics
	ProviderRequests metric.Int64Counter // attributes: provider, outcome
	ProviderDuration metric.Float64Histogram

	// Circuit breaker metrics
	CircuitBreakerState metric.Int64Gauge

	// Prometheus exporter for the HTTP handler
	exporter *prometheus.Exporter
}

// NewMetrics creates a new Metrics instance
func NewMetrics(serviceName string, enabled bool) (*Metrics, error) {
	if !enabled {
		return &Metrics{}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	m := &Metrics{
		meter:    provider.Meter(serviceName),
		exporter: exporter,
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

// initMetrics initializes all metric instruments
func (m *Metrics) initMetrics() error {
	var err error

	m.CacheHits, err = m.meter.Int64Counter(
		"swapdata.cache.hits",
		metric.WithDescription("Cache reads served from a resident entry"),
	)
	if err != nil {
		return err
	}

	m.CacheMisses, err = m.meter.Int64Counter(
		"swapdata.cache.misses",
		metric.WithDescription("Cache reads with no usable entry"),
	)
	if err != nil {
		return err
	}

	m.CacheStaleServes, err = m.meter.Int64Counter(
		"swapdata.cache.stale_serves",
		metric.WithDescription("Cache hits answered with stale data while revalidating"),
	)
	if err != nil {
		return err
	}

	m.CacheEvictions, err = m.meter.Int64Counter(
		"swapdata.cache.evictions",
		metric.WithDescription("Entries evicted by the LRU policy"),
	)
	if err != nil {
		return err
	}

	m.CacheSize, err = m.meter.Int64Gauge(
		"swapdata.cache.size",
		metric.WithDescription("Resident cache entries"),
	)
	if err != nil {
		return err
	}

	m.CoalescedFetches, err = m.meter.Int64Counter(
		"swapdata.fetch.coalesced",
		metric.WithDescription("Fetches that joined an already in-flight request"),
	)
	if err != nil {
		return err
	}

	m.FetchDuration, err = m.meter.Float64Histogram(
		"swapdata.fetch.duration",
		metric.WithDescription("Upstream fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.RevalidationFailures, err = m.meter.Int64Counter(
		"swapdata.revalidation.failures",
		metric.WithDescription("Background revalidations that returned an error"),
	)
	if err != nil {
		return err
	}

	m.RevalidationsDropped, err = m.meter.Int64Counter(
		"swapdata.revalidation.dropped",
		metric.WithDescription("Background revalidations dropped because the task queue was full"),
	)
	if err != nil {
		return err
	}

	m.PriceResolutions, err = m.meter.Int64Counter(
		"swapdata.price.resolutions",
		metric.WithDescription("Successful price resolutions by source"),
	)
	if err != nil {
		return err
	}

	m.PriceUnresolved, err = m.meter.Int64Counter(
		"swapdata.price.unresolved",
		metric.WithDescription("Resolution chains that exhausted every source"),
	)
	if err != nil {
		return err
	}

	m.ProviderRequests, err = m.meter.Int64Counter(
		"swapdata.provider.requests",
		metric.WithDescription("External price feed requests by provider and outcome"),
	)
	if err != nil {
		return err
	}

	m.ProviderDuration, err = m.meter.Float64Histogram(
		"swapdata.provider.duration",
		metric.WithDescription("External price feed request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.CircuitBreakerState, err = m.meter.Int64Gauge(
		"swapdata.circuit_breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Handler returns the HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheHit records a cache hit, stale or fresh
func (m *Metrics) RecordCacheHit(ctx context.Context, stale bool) {
	if m.CacheHits == nil {
		return
	}
	m.CacheHits.Add(ctx, 1)
	if stale {
		m.CacheStaleServes.Add(ctx, 1)
	}
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m.CacheMisses == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1)
}

// RecordEviction records an LRU eviction
func (m *Metrics) RecordEviction(ctx context.Context) {
	if m.CacheEvictions == nil {
		return
	}
	m.CacheEvictions.Add(ctx, 1)
}

// RecordCacheSize records the resident entry count
func (m *Metrics) RecordCacheSize(ctx context.Context, size int64) {
	if m.CacheSize == nil {
		return
	}
	m.CacheSize.Record(ctx, size)
}

// RecordResolution records which source answered a price query
func (m *Metrics) RecordResolution(ctx context.Context, source string) {
	if m.PriceResolutions == nil {
		return
	}
	m.PriceResolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordProviderRequest records an external feed call
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider string, durationMS float64, err error) {
	if m.ProviderRequests == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	m.ProviderRequests.Add(ctx, 1, attrs)
	m.ProviderDuration.Record(ctx, durationMS, metric.WithAttributes(attribute.String("provider", provider)))
}

// SetCircuitBreakerState records a breaker state transition
func (m *Metrics) SetCircuitBreakerState(ctx context.Context, name string, state int64) {
	if m.CircuitBreakerState == nil {
		return
	}
	m.CircuitBreakerState.Record(ctx, state, metric.WithAttributes(attribute.String("breaker", name)))
}
