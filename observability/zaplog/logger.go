// Package zaplog backs core.Logger and core.DiagnosticSink with go.uber.org/zap.
package zaplog

import (
	"fmt"

	"github.com/Swind/go-thread-affinity/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger adapts a *zap.Logger to core.Logger.
type Logger struct {
	l *zap.Logger
}

var _ core.Logger = (*Logger)(nil)

// New wraps l. A nil l yields a logger that discards everything.
func New(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{l: l}
}

// Named returns a logger with name appended to the zap logger name.
func (z *Logger) Named(name string) *Logger {
	return &Logger{l: z.l.Named(name)}
}

// Zap returns the underlying zap logger.
func (z *Logger) Zap() *zap.Logger {
	return z.l
}

func (z *Logger) Debug(msg string, fields ...core.Field) { z.l.Debug(msg, toZap(fields)...) }
func (z *Logger) Info(msg string, fields ...core.Field)  { z.l.Info(msg, toZap(fields)...) }
func (z *Logger) Warn(msg string, fields ...core.Field)  { z.l.Warn(msg, toZap(fields)...) }
func (z *Logger) Error(msg string, fields ...core.Field) { z.l.Error(msg, toZap(fields)...) }

func toZap(fields []core.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// NewZap builds a production zap logger at the given level
// ("debug", "info", "warn", "error"). An empty level means info.
func NewZap(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("zaplog: invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
