package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	reader       *sdkmetric.ManualReader
}

// NewTestTelemetry builds a Telemetry backed by in-memory readers.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	return &TestTelemetry{
		Telemetry: &Telemetry{
			config:         cfg,
			tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(recorder)),
			meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		},
		SpanRecorder: recorder,
		reader:       reader,
	}
}

// SpanByName returns the first ended span with name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range t.SpanRecorder.Ended() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// AssertSpanAttribute fails tb unless the span carries key=expected.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, expected interface{}) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not found", spanName)
	}
	for _, attr := range span.Attributes() {
		if attr.Key == attribute.Key(key) {
			if got := attr.Value.AsInterface(); got != expected {
				tb.Errorf("span %q attribute %q: got %v, want %v", spanName, key, got, expected)
			}
			return
		}
	}
	tb.Errorf("span %q missing attribute %q", spanName, key)
}

// Collect gathers the current metric state.
func (t *TestTelemetry) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := t.reader.Collect(ctx, &rm)
	return rm, err
}

// SumValue returns the summed int64 counter value for the named metric.
func (t *TestTelemetry) SumValue(tb testing.TB, name string) int64 {
	tb.Helper()
	rm, err := t.Collect(context.Background())
	if err != nil {
		tb.Fatalf("collect metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
