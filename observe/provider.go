package observe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Local is an in-process meter provider whose readings can be pulled on
// demand, used by the terminal front end to print usage counters.
type Local struct {
	Provider *sdkmetric.MeterProvider
	Metrics  *Metrics
	reader   *sdkmetric.ManualReader
}

// NewLocal creates a Local provider and registers it as the global meter
// provider.
func NewLocal() (*Local, error) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp)
	return &Local{Provider: mp, Metrics: m, reader: reader}, nil
}

// Shutdown flushes and stops the provider.
func (l *Local) Shutdown(ctx context.Context) error {
	return l.Provider.Shutdown(ctx)
}

// CounterValue is one data point of an integer counter.
type CounterValue struct {
	Name       string
	Attributes string
	Value      int64
}

func (c CounterValue) String() string {
	return fmt.Sprintf("%s{%s} %d", c.Name, c.Attributes, c.Value)
}

// Counters collects every integer counter data point, sorted by name and
// attributes.
func (l *Local) Counters(ctx context.Context) ([]CounterValue, error) {
	var rm metricdata.ResourceMetrics
	if err := l.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	var out []CounterValue
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				var attrs []string
				for _, kv := range dp.Attributes.ToSlice() {
					attrs = append(attrs, string(kv.Key)+"="+kv.Value.Emit())
				}
				out = append(out, CounterValue{Name: met.Name, Attributes: strings.Join(attrs, ","), Value: dp.Value})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Attributes < out[j].Attributes
	})
	return out, nil
}
