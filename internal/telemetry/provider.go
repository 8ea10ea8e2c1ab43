package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

func newResource(cfg *Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
}

func skipVerifyTLS() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for internal CAs
}

func newTraceExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	if cfg.Protocol == "http/protobuf" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint))}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else if cfg.TLSSkipVerify {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func newTracerProvider(cfg *Config, res *resource.Resource, exporter trace.SpanExporter) *trace.TracerProvider {
	var sampler trace.Sampler
	switch {
	case cfg.SampleRate >= 1:
		sampler = trace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = trace.NeverSample()
	default:
		sampler = trace.TraceIDRatioBased(cfg.SampleRate)
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(sampler)),
	)
}

// cumulative keeps counters Prometheus-compatible regardless of the
// OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE environment.
func cumulative(metric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func newMetricExporter(ctx context.Context, cfg *Config) (metric.Exporter, error) {
	if cfg.Protocol == "http/protobuf" {
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlpmetrichttp.WithTemporalitySelector(cumulative),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithTemporalitySelector(cumulative),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	} else if cfg.TLSSkipVerify {
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func newMeterProvider(cfg *Config, res *resource.Resource, exporter metric.Exporter) *metric.MeterProvider {
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter,
			metric.WithInterval(cfg.ExportInterval.Duration()))),
	)
}

func buildProviders(ctx context.Context, cfg *Config) (*trace.TracerProvider, *metric.MeterProvider, error) {
	res := newResource(cfg)

	spans, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := newTracerProvider(cfg, res, spans)

	if !cfg.MetricsEnabled {
		return tp, nil, nil
	}
	metrics, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return tp, nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	return tp, newMeterProvider(cfg, res, metrics), nil
}
