package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newCore builds the stdout core, the otel bridge core, or a tee of both,
// then applies sampling.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	var cores []zapcore.Core

	if cfg.Output.Stdout {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), cfg.Level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		name := cfg.Fields["service"]
		if name == "" {
			name = "folio"
		}
		cores = append(cores, otelzap.NewCore(name, otelzap.WithLoggerProvider(otelProvider)))
	}

	switch len(cores) {
	case 0:
		return nil, fmt.Errorf("no log output available")
	case 1:
		return newSampledCore(cores[0], cfg.Sampling), nil
	default:
		return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
	}
}
