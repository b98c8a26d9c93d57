// Package otelsink reports single-thread context failures as OpenTelemetry spans.
package otelsink

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Swind/go-thread-affinity/core"
)

// tracerName is the instrumentation scope name for failure spans.
const tracerName = "github.com/Swind/go-thread-affinity"

// SpanName is the name of every span emitted by DiagnosticSink.
const SpanName = "affinity.context.failure"

// DiagnosticSink emits one short span per recorded failure. With no
// TracerProvider configured globally the noop tracer makes it a pass-through.
type DiagnosticSink struct {
	tracer      trace.Tracer
	contextName string
}

var _ core.DiagnosticSink = (*DiagnosticSink)(nil)

// New returns a sink using the global tracer provider.
func New(contextName string) *DiagnosticSink {
	return NewWithTracer(otel.Tracer(tracerName), contextName)
}

// NewWithTracer returns a sink using the provided tracer.
func NewWithTracer(tracer trace.Tracer, contextName string) *DiagnosticSink {
	return &DiagnosticSink{tracer: tracer, contextName: contextName}
}

// RecordFailure starts and ends a span carrying the failure as an error.
func (s *DiagnosticSink) RecordFailure(kind core.FailureKind, message string) {
	if s == nil || s.tracer == nil {
		return
	}
	_, span := s.tracer.Start(context.Background(), SpanName,
		trace.WithAttributes(
			attribute.String("affinity.context", s.contextName),
			attribute.String("affinity.failure.kind", string(kind)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	span.RecordError(errors.New(message))
	span.SetStatus(codes.Error, message)
}
