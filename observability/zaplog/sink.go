package zaplog

import (
	"github.com/Swind/go-thread-affinity/core"
	"go.uber.org/zap"
)

// DiagnosticSink writes failure records to zap at error level, tagged
// with the context name.
type DiagnosticSink struct {
	l *zap.Logger
}

var _ core.DiagnosticSink = (*DiagnosticSink)(nil)

// NewDiagnosticSink creates a sink for the named context.
func NewDiagnosticSink(l *zap.Logger, contextName string) *DiagnosticSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &DiagnosticSink{l: l.With(zap.String("context", contextName))}
}

// RecordFailure logs the failure.
func (s *DiagnosticSink) RecordFailure(kind core.FailureKind, message string) {
	if s == nil {
		return
	}
	s.l.Error("single-thread context failure",
		zap.String("kind", string(kind)),
		zap.String("message", message),
	)
}
