package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "folio", cfg.Observability.ServiceName)
	assert.False(t, cfg.Observability.EnableTelemetry)
	assert.Empty(t, cfg.Storage.Path)
	assert.Empty(t, cfg.Replication.URL)
	assert.Equal(t, "conversations", cfg.Replication.Bucket)
	assert.Equal(t, 5*time.Second, cfg.Chat.DedupWindow)
	assert.Equal(t, 3*time.Second, cfg.Chat.TypingTimeout)
	assert.Equal(t, "admin123", cfg.Auth.DefaultPassword.Value())
	assert.Equal(t, "recovery", cfg.Auth.RecoveryCode.Value())
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FOLIO_SERVER_HTTP_PORT", "9191")
	t.Setenv("FOLIO_STORAGE_PATH", "/tmp/folio.db")
	t.Setenv("FOLIO_REPLICATION_URL", "nats://127.0.0.1:4222")
	t.Setenv("FOLIO_CHAT_DEDUP_WINDOW", "2s")
	t.Setenv("FOLIO_ASSISTANT_RATE_PER_MIN", "12.5")

	cfg := Load()

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "/tmp/folio.db", cfg.Storage.Path)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Replication.URL)
	assert.Equal(t, 2*time.Second, cfg.Chat.DedupWindow)
	assert.Equal(t, 12.5, cfg.Assistant.RatePerMin)
}

func TestLoad_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("FOLIO_SERVER_HTTP_PORT", "not-a-port")
	t.Setenv("FOLIO_CHAT_TYPING_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Chat.TypingTimeout)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"telemetry without name", func(c *Config) {
			c.Observability.EnableTelemetry = true
			c.Observability.ServiceName = ""
		}, "service name"},
		{"zero write timeout", func(c *Config) { c.Replication.WriteTimeout = 0 }, "replication timeouts"},
		{"zero assistant timeout", func(c *Config) { c.Assistant.Timeout = 0 }, "assistant timeout"},
		{"negative rate", func(c *Config) { c.Assistant.RatePerMin = -1 }, "assistant rate"},
		{"zero dedup window", func(c *Config) { c.Chat.DedupWindow = 0 }, "dedup window"},
		{"empty password", func(c *Config) { c.Auth.DefaultPassword = "" }, "default owner password"},
		{"empty recovery code", func(c *Config) { c.Auth.RecoveryCode = "" }, "recovery code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "hunter2")
	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1500ms")))
	assert.Equal(t, 1500*time.Millisecond, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("later")))

	text, err := Duration(2 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2s", string(text))
}
