package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples Warn and below. Error and above always pass so a
// burst of tool chatter can never hide a failed run.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	chatter := zapcore.NewSamplerWithOptions(
		bandCore{Core: core, lo: zapcore.DebugLevel - 10, hi: zapcore.WarnLevel},
		cfg.Tick.Duration(),
		cfg.Initial,
		cfg.Thereafter,
	)
	return zapcore.NewTee(
		chatter,
		bandCore{Core: core, lo: zapcore.ErrorLevel, hi: zapcore.FatalLevel},
	)
}

// bandCore forwards entries whose level lies in [lo, hi].
type bandCore struct {
	zapcore.Core
	lo, hi zapcore.Level
}

func (c bandCore) Enabled(l zapcore.Level) bool {
	return l >= c.lo && l <= c.hi && c.Core.Enabled(l)
}

func (c bandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level < c.lo || e.Level > c.hi {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c bandCore) With(fields []zapcore.Field) zapcore.Core {
	return bandCore{Core: c.Core.With(fields), lo: c.lo, hi: c.hi}
}
