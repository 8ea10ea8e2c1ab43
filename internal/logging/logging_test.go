package logging

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/folio/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithConversationID(ctx, "0192f0c4-aaaa")
	ctx = WithVisitorToken(ctx, "visitor-abc123xyz")

	tl := NewTestLogger()
	tl.Info(ctx, "appended")

	tl.AssertField(t, "appended", "request.id", "req-1")
	tl.AssertField(t, "appended", "conversation.id", "0192f0c4-aaaa")
	tl.AssertField(t, "appended", "visitor.token", "[REDACTED:17]")
	tl.AssertNoSecrets(t)
}

func TestContextFields_Trace(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	fields := ContextFields(ctx)
	m := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(m)
	}
	assert.Equal(t, sc.TraceID().String(), m.Fields["trace_id"])
	assert.Equal(t, sc.SpanID().String(), m.Fields["span_id"])
}

func TestWithIDs_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, "")))
	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, "has space")))
	assert.Empty(t, ConversationIDFromContext(WithConversationID(ctx, strings.Repeat("a", maxIDLen+1))))
	assert.Empty(t, VisitorTokenFromContext(WithVisitorToken(ctx, "bad/token")))
}

func TestFromContext(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}

func TestTraceOnlyWhenEnabled(t *testing.T) {
	tl := NewTestLogger()
	tl.Trace(context.Background(), "snapshot received")
	tl.AssertLogged(t, TraceLevel, "snapshot received")

	nop := NewNop()
	assert.False(t, nop.Enabled(TraceLevel))
}

func TestConfigFromObservability(t *testing.T) {
	cfg, err := ConfigFromObservability(config.ObservabilityConfig{
		ServiceName: "folio-test",
		LogLevel:    "debug",
		LogFormat:   "console",
	})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "folio-test", cfg.Fields["service"])
	assert.False(t, cfg.Output.OTEL)
	require.NoError(t, cfg.Validate())

	_, err = ConfigFromObservability(config.ObservabilityConfig{LogLevel: "shouty"})
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Format = "xml" }},
		{"no outputs", func(c *Config) { c.Output.Stdout = false }},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }},
		{"empty field", func(c *Config) { c.Fields["env"] = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
	_ = logger.Sync()

	cfg := NewDefaultConfig()
	cfg.Output.Stdout = false
	cfg.Output.OTEL = true
	_, err = NewLogger(cfg, nil)
	assert.Error(t, err, "otel output without a provider leaves no core")
}

func TestRedactingEncoder_EncodeEntry(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "login", Time: time.Now()}, []zapcore.Field{
		zap.String("password", "hunter2"),
		zap.String("header", "Bearer abc.def"),
		zap.String("recovery_code", "letmein"),
		zap.String("route", "/api/v1/auth/login"),
	})
	require.NoError(t, err)
	out := buf.String()

	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "letmein")
	assert.Contains(t, out, "/api/v1/auth/login")
	assert.Contains(t, out, "[REDACTED:pattern]")
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	clone := enc.Clone()
	clone.AddString("token", "tok-123")
	clone.AddString("bucket", "conversations")

	buf, err := clone.EncodeEntry(zapcore.Entry{Message: "connected"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "tok-123")
	assert.Contains(t, buf.String(), "conversations")
}

func TestSecretField(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "assistant configured", Secret("api_key", config.Secret("sk-12345")))
	tl.AssertField(t, "assistant configured", "api_key", "[REDACTED:8]")
	tl.AssertNoSecrets(t)
}

func TestSampling_ErrorsAlwaysPass(t *testing.T) {
	tl := NewTestLogger()
	core := newSampledCore(tl.Underlying().Core(), SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    1,
		Thereafter: 1000,
	})
	l := Wrap(zap.New(core))

	for i := 0; i < 5; i++ {
		l.Info(context.Background(), "repeated")
		l.Error(context.Background(), "failed")
	}

	assert.Equal(t, 1, tl.FilterMessage("repeated").Len())
	assert.Equal(t, 5, tl.FilterMessage("failed").Len())
}
