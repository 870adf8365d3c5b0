// Package observe provides application-wide observability primitives for
// irum: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware for the diagnostics listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed in
// Prometheus format by [InitProvider]. A package-level [DefaultMetrics]
// instance is provided for convenience; tests should use [NewMetrics] with a
// custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all irum metrics.
const meterName = "github.com/MrWong99/irum"

// Request kinds used as the "kind" attribute of provider metrics.
const (
	KindConvert       = "convert"
	KindHistorySave   = "history_save"
	KindHistoryDelete = "history_delete"
)

// Request outcomes used as the "status" attribute of provider metrics.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// ConvertDuration tracks recommendation request latency.
	ConvertDuration metric.Float64Histogram

	// ProviderRequests counts remote calls. Attributes: kind, status.
	ProviderRequests metric.Int64Counter

	// HistoryDropped counts best-effort notifications that were never sent.
	// Attribute: reason ("breaker_open", "saturated", "closed").
	HistoryDropped metric.Int64Counter

	// StaleResponses counts conversion results discarded because a newer
	// submit had started.
	StaleResponses metric.Int64Counter

	// StoreErrors counts swallowed local persistence failures. Attribute: op.
	StoreErrors metric.Int64Counter

	// SavedEntries reports the current length of the saved list.
	SavedEntries metric.Int64Gauge

	// HTTPRequestDuration tracks diagnostics endpoint latency.
	// Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// remote service calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ConvertDuration, err = m.Float64Histogram("irum.convert.duration",
		metric.WithDescription("Latency of name recommendation requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("irum.provider.requests",
		metric.WithDescription("Total remote service calls by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.HistoryDropped, err = m.Int64Counter("irum.history.dropped",
		metric.WithDescription("History notifications dropped without a request, by reason."),
	); err != nil {
		return nil, err
	}
	if met.StaleResponses, err = m.Int64Counter("irum.convert.stale",
		metric.WithDescription("Conversion responses discarded because a newer submit superseded them."),
	); err != nil {
		return nil, err
	}
	if met.StoreErrors, err = m.Int64Counter("irum.store.errors",
		metric.WithDescription("Swallowed local store failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.SavedEntries, err = m.Int64Gauge("irum.saved.entries",
		metric.WithDescription("Number of entries in the local saved list."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("irum.http.request.duration",
		metric.WithDescription("Diagnostics HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest records one remote call outcome.
func (m *Metrics) RecordProviderRequest(ctx context.Context, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordHistoryDropped records a notification that was never sent.
func (m *Metrics) RecordHistoryDropped(ctx context.Context, kind, reason string) {
	m.HistoryDropped.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("reason", reason),
		),
	)
}

// RecordStoreError records a swallowed local store failure.
func (m *Metrics) RecordStoreError(ctx context.Context, op string) {
	m.StoreErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
