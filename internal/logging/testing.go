package logging

import (
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger backed by an in-memory observer.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger captures every entry down to TraceLevel.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, observed: observed}
}

func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset drops captured entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged fails tb unless an entry at level contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			return
		}
	}
	tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
}

// AssertNotLogged fails tb if an entry at level contains msgContains.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			tb.Errorf("unexpected log at %v containing %q", level, msgContains)
		}
	}
}

// AssertField fails tb unless an entry with msg carries key=expected.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected string) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		if v, ok := entry.ContextMap()[key]; ok && v == expected {
			return
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+\S+`),
	regexp.MustCompile(`(?i)api[_-]?key[=:]\s*\S+`),
}

// AssertNoSecrets fails tb if a credential-looking field went out unmasked.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	sensitive := []string{"password", "secret", "token", "api_key", "authorization", "recovery"}

	for _, entry := range t.observed.All() {
		for _, re := range secretPatterns {
			if re.MatchString(entry.Message) {
				tb.Errorf("sensitive pattern in message: %q", entry.Message)
			}
		}
		for _, field := range entry.Context {
			if field.Type != zapcore.StringType || field.String == "" {
				continue
			}
			key := strings.ToLower(field.Key)
			for _, s := range sensitive {
				if strings.Contains(key, s) && !strings.HasPrefix(field.String, "[REDACTED") {
					tb.Errorf("sensitive field %q not redacted: %q", field.Key, field.String)
				}
			}
			for _, re := range secretPatterns {
				if re.MatchString(field.String) {
					tb.Errorf("sensitive pattern in field %q: %q", field.Key, field.String)
				}
			}
		}
	}
}
