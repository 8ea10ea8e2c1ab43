package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer and meter providers.
//
// Exporter setup failures never stop the service: the instance is marked
// degraded and callers fall back to the global no-op providers.
type Telemetry struct {
	config *Config

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	logProvider    log.LoggerProvider

	mu       sync.Mutex
	degraded string
	shutdown bool
}

// New validates cfg and installs global providers when telemetry is enabled.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	tp, mp, err := buildProviders(ctx, cfg)
	if err != nil {
		t.degraded = err.Error()
	}
	if tp != nil {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}
	if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// Tracer returns a tracer, falling back to the global provider.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter returns a meter, falling back to the global provider.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

// LoggerProvider is the provider for the zap otel bridge. May be nil.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.logProvider
}

func (t *Telemetry) SetLoggerProvider(lp log.LoggerProvider) {
	if t != nil {
		t.logProvider = lp
	}
}

// Shutdown flushes and stops the providers. Without a deadline on ctx the
// configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownAfter.Duration())
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	t.mu.Lock()
	t.shutdown = true
	t.mu.Unlock()
	return errors.Join(errs...)
}

// ForceFlush exports pending spans and metrics immediately.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace flush: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter flush: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HealthStatus reports exporter state for /health.
type HealthStatus struct {
	Enabled  bool   `json:"enabled"`
	Healthy  bool   `json:"healthy"`
	Degraded string `json:"degraded,omitempty"`
}

func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return HealthStatus{
		Enabled:  t.config != nil && t.config.Enabled,
		Healthy:  !t.shutdown && t.degraded == "",
		Degraded: t.degraded,
	}
}
