package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. It is used for per-snapshot and
// per-widget-event detail and is filtered out in production.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name, accepting "trace" in addition to
// the zap names.
func LevelFromString(level string) (zapcore.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
