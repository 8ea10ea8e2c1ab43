// Package config provides configuration loading for folio.
//
// Configuration is loaded from environment variables with sensible defaults.
// This package covers the HTTP server, observability, local storage, the
// optional replication backend, the assistant endpoint and the live chat bridge.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the complete folio configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Storage       StorageConfig       `koanf:"storage"`
	Replication   ReplicationConfig   `koanf:"replication"`
	Assistant     AssistantConfig     `koanf:"assistant"`
	Chat          ChatConfig          `koanf:"chat"`
	Auth          AuthConfig          `koanf:"auth"`
	Profile       ProfileConfig       `koanf:"profile"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
}

// StorageConfig holds local persistence configuration.
// An empty Path keeps all state in memory.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// ReplicationConfig holds defaults for the optional replicated backend.
//
// URL and Bucket seed the replication credentials when none were saved by the
// owner. ConfigFile, when set, is watched and re-applied on change.
type ReplicationConfig struct {
	URL            string        `koanf:"url"`
	Bucket         string        `koanf:"bucket"`
	Token          Secret        `koanf:"token"`
	ConfigFile     string        `koanf:"config_file"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

// AssistantConfig holds the generative text endpoint configuration.
type AssistantConfig struct {
	BaseURL    string        `koanf:"base_url"`
	Model      string        `koanf:"model"`
	APIKey     Secret        `koanf:"api_key"`
	Timeout    time.Duration `koanf:"timeout"`
	RatePerMin float64       `koanf:"rate_per_min"`
}

// ChatConfig holds live chat bridge configuration.
type ChatConfig struct {
	WebsiteID     string        `koanf:"website_id"`
	DedupWindow   time.Duration `koanf:"dedup_window"`
	TypingTimeout time.Duration `koanf:"typing_timeout"`
}

// AuthConfig holds the owner passphrase defaults.
type AuthConfig struct {
	DefaultPassword Secret `koanf:"default_password"`
	RecoveryCode    Secret `koanf:"recovery_code"`
}

// ProfileConfig holds profile store configuration.
type ProfileConfig struct {
	SeedFile string `koanf:"seed_file"`
}

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//   - FOLIO_SERVER_HOST: bind host (default: 0.0.0.0)
//   - FOLIO_SERVER_HTTP_PORT: HTTP server port (default: 8080)
//   - FOLIO_SERVER_SHUTDOWN_TIMEOUT: graceful shutdown timeout (default: 10s)
//   - FOLIO_OBSERVABILITY_ENABLE_TELEMETRY: enable OpenTelemetry (default: false)
//   - FOLIO_STORAGE_PATH: bbolt file (default: empty, in-memory)
//   - FOLIO_REPLICATION_URL / FOLIO_REPLICATION_BUCKET: replication defaults
//   - FOLIO_ASSISTANT_BASE_URL / FOLIO_ASSISTANT_MODEL / FOLIO_ASSISTANT_API_KEY
//   - FOLIO_CHAT_DEDUP_WINDOW: live chat echo window (default: 5s)
//   - FOLIO_AUTH_DEFAULT_PASSWORD / FOLIO_AUTH_RECOVERY_CODE
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("FOLIO_SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("FOLIO_SERVER_HTTP_PORT", 8080),
			ShutdownTimeout: getEnvDuration("FOLIO_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("FOLIO_OBSERVABILITY_ENABLE_TELEMETRY", false),
			ServiceName:     getEnvString("FOLIO_OBSERVABILITY_SERVICE_NAME", "folio"),
			Endpoint:        getEnvString("FOLIO_OBSERVABILITY_ENDPOINT", "localhost:4317"),
			LogLevel:        getEnvString("FOLIO_OBSERVABILITY_LOG_LEVEL", "info"),
			LogFormat:       getEnvString("FOLIO_OBSERVABILITY_LOG_FORMAT", "json"),
		},
		Storage: StorageConfig{
			Path: getEnvString("FOLIO_STORAGE_PATH", ""),
		},
		Replication: ReplicationConfig{
			URL:            getEnvString("FOLIO_REPLICATION_URL", ""),
			Bucket:         getEnvString("FOLIO_REPLICATION_BUCKET", "conversations"),
			Token:          Secret(getEnvString("FOLIO_REPLICATION_TOKEN", "")),
			ConfigFile:     getEnvString("FOLIO_REPLICATION_CONFIG_FILE", ""),
			ConnectTimeout: getEnvDuration("FOLIO_REPLICATION_CONNECT_TIMEOUT", 5*time.Second),
			WriteTimeout:   getEnvDuration("FOLIO_REPLICATION_WRITE_TIMEOUT", 5*time.Second),
		},
		Assistant: AssistantConfig{
			BaseURL:    getEnvString("FOLIO_ASSISTANT_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
			Model:      getEnvString("FOLIO_ASSISTANT_MODEL", "gemini-2.0-flash"),
			APIKey:     Secret(getEnvString("FOLIO_ASSISTANT_API_KEY", "")),
			Timeout:    getEnvDuration("FOLIO_ASSISTANT_TIMEOUT", 5*time.Second),
			RatePerMin: getEnvFloat("FOLIO_ASSISTANT_RATE_PER_MIN", 50),
		},
		Chat: ChatConfig{
			WebsiteID:     getEnvString("FOLIO_CHAT_WEBSITE_ID", ""),
			DedupWindow:   getEnvDuration("FOLIO_CHAT_DEDUP_WINDOW", 5*time.Second),
			TypingTimeout: getEnvDuration("FOLIO_CHAT_TYPING_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			DefaultPassword: Secret(getEnvString("FOLIO_AUTH_DEFAULT_PASSWORD", "admin123")),
			RecoveryCode:    Secret(getEnvString("FOLIO_AUTH_RECOVERY_CODE", "recovery")),
		},
		Profile: ProfileConfig{
			SeedFile: getEnvString("FOLIO_PROFILE_SEED_FILE", ""),
		},
	}

	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Service name is empty (when telemetry is enabled)
//   - Any external call timeout is not positive
//   - The owner passphrase default or recovery code is empty
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if c.Replication.ConnectTimeout <= 0 || c.Replication.WriteTimeout <= 0 {
		return errors.New("replication timeouts must be positive")
	}

	if c.Assistant.Timeout <= 0 {
		return errors.New("assistant timeout must be positive")
	}
	if c.Assistant.RatePerMin <= 0 {
		return fmt.Errorf("assistant rate must be positive, got %v", c.Assistant.RatePerMin)
	}

	if c.Chat.DedupWindow <= 0 || c.Chat.TypingTimeout <= 0 {
		return errors.New("chat dedup window and typing timeout must be positive")
	}

	if !c.Auth.DefaultPassword.IsSet() {
		return errors.New("default owner password must be set")
	}
	if !c.Auth.RecoveryCode.IsSet() {
		return errors.New("recovery code must be set")
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
