// Package telemetry wires OpenTelemetry tracing and metrics for folio.
package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/folio/internal/config"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool            `koanf:"enabled"`
	Endpoint       string          `koanf:"endpoint"`
	Protocol       string          `koanf:"protocol"` // "grpc" or "http/protobuf"
	ServiceName    string          `koanf:"service_name"`
	ServiceVersion string          `koanf:"service_version"`
	Insecure       bool            `koanf:"insecure"`
	TLSSkipVerify  bool            `koanf:"tls_skip_verify"`
	SampleRate     float64         `koanf:"sample_rate"`
	MetricsEnabled bool            `koanf:"metrics_enabled"`
	ExportInterval config.Duration `koanf:"export_interval"`
	ShutdownAfter  config.Duration `koanf:"shutdown_timeout"`
}

// NewDefaultConfig returns local-collector defaults with telemetry off.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       "grpc",
		ServiceName:    "folio",
		ServiceVersion: "dev",
		Insecure:       true,
		SampleRate:     1.0,
		MetricsEnabled: true,
		ExportInterval: config.Duration(15 * time.Second),
		ShutdownAfter:  config.Duration(5 * time.Second),
	}
}

// FromObservability derives the telemetry config from the service config.
func FromObservability(obs config.ObservabilityConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = obs.EnableTelemetry
	if obs.Endpoint != "" {
		cfg.Endpoint = obs.Endpoint
	}
	if obs.ServiceName != "" {
		cfg.ServiceName = obs.ServiceName
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	if strings.HasPrefix(cfg.Endpoint, "https://") {
		cfg.Protocol = "http/protobuf"
		cfg.Insecure = false
	}
	return cfg
}

// Validate checks configuration for errors. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}
	if c.Protocol != "grpc" && c.Protocol != "http/protobuf" {
		return fmt.Errorf("protocol must be grpc or http/protobuf, got %q", c.Protocol)
	}
	if c.Insecure && !isLocalEndpoint(c.Endpoint) {
		return fmt.Errorf("insecure export is only allowed to a local endpoint, got %q", c.Endpoint)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be between 0 and 1, got %f", c.SampleRate)
	}
	if c.MetricsEnabled && c.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("export_interval must be positive when metrics are enabled")
	}
	if c.ShutdownAfter.Duration() <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}

func isLocalEndpoint(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https://; the OTLP exporters want host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
