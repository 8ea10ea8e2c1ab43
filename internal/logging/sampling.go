package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below error level. Errors always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	errors := &rangeCore{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel}
	rest := &rangeCore{Core: core, min: TraceLevel, max: zapcore.WarnLevel}

	sampled := zapcore.NewSamplerWithOptions(rest, cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter)
	return zapcore.NewTee(errors, sampled)
}

// rangeCore only accepts levels within [min, max].
type rangeCore struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *rangeCore) Enabled(lvl zapcore.Level) bool {
	if lvl < c.min || lvl > c.max {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *rangeCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *rangeCore) With(fields []zapcore.Field) zapcore.Core {
	return &rangeCore{Core: c.Core.With(fields), min: c.min, max: c.max}
}
