// Package logging provides structured logging for folio on top of zap.
//
// The Logger adds correlation fields taken from the context (request id,
// conversation id, visitor token, trace ids), redacts credentials at the
// encoder level and samples below error level.
package logging

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/folio/internal/config"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level     `koanf:"level"`
	Format    string            `koanf:"format"`
	Output    OutputConfig      `koanf:"output"`
	Sampling  SamplingConfig    `koanf:"sampling"`
	Caller    bool              `koanf:"caller"`
	Fields    map[string]string `koanf:"fields"`
	Redaction RedactionConfig   `koanf:"redaction"`
}

// OutputConfig controls where logs are written.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig controls log volume reduction.
type SamplingConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Tick       config.Duration `koanf:"tick"`
	Initial    int             `koanf:"initial"`
	Thereafter int             `koanf:"thereafter"`
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Second),
			Initial:    100,
			Thereafter: 10,
		},
		Caller: true,
		Fields: map[string]string{
			"service": "folio",
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key", "authorization",
				"bearer", "credential", "recovery_code", "visitor_token",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// ConfigFromObservability derives a logging config from the service config.
func ConfigFromObservability(obs config.ObservabilityConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	if obs.LogLevel != "" {
		level, err := LevelFromString(obs.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", obs.LogLevel, err)
		}
		cfg.Level = level
	}
	if obs.LogFormat != "" {
		cfg.Format = obs.LogFormat
	}
	if obs.ServiceName != "" {
		cfg.Fields["service"] = obs.ServiceName
	}
	cfg.Output.OTEL = obs.EnableTelemetry
	return cfg, nil
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}

	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > 200 {
				return fmt.Errorf("redaction pattern too long (max 200 chars): %q", pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
	}

	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}

	return nil
}
