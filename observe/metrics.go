// Package observe provides OpenTelemetry metrics for provider round trips and
// tool executions.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) uses the
// global meter provider; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all toolrelay metrics.
const meterName = "github.com/martinemde/toolrelay"

// Metric names.
const (
	MetricProviderDuration = "toolrelay.provider.duration"
	MetricProviderRequests = "toolrelay.provider.requests"
	MetricProviderErrors   = "toolrelay.provider.errors"
	MetricToolDuration     = "toolrelay.tool.duration"
	MetricToolCalls        = "toolrelay.tool.calls"
)

// Status attribute values.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusNoReply = "no_reply"
)

// Metrics holds the metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// ProviderDuration tracks provider round-trip latency. Attributes:
	//   provider, status
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts provider calls. Attributes: provider, status
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls. Attributes: provider, kind
	ProviderErrors metric.Int64Counter

	// ToolDuration tracks tool execution latency. Attributes: tool, status
	ToolDuration metric.Float64Histogram

	// ToolCalls counts tool executions. Attributes: tool, status
	ToolCalls metric.Int64Counter
}

// latencyBuckets covers sandbox runs in milliseconds up to slow model calls.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ProviderDuration, err = m.Float64Histogram(MetricProviderDuration,
		metric.WithDescription("Latency of provider round trips."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter(MetricProviderRequests,
		metric.WithDescription("Total provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter(MetricProviderErrors,
		metric.WithDescription("Total provider errors by provider and error kind."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram(MetricToolDuration,
		metric.WithDescription("Latency of tool executions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter(MetricToolCalls,
		metric.WithDescription("Total tool executions by tool name and status."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// RecordProviderCall records one provider round trip.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.ProviderRequests.Add(ctx, 1, attrs)
	m.ProviderDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordProviderError records a failed provider call by error kind.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordToolCall records one tool execution.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.ToolCalls.Add(ctx, 1, attrs)
	m.ToolDuration.Record(ctx, elapsed.Seconds(), attrs)
}
