package core

import (
	"time"
)

// =============================================================================
// DiagnosticSink: Where shutdown failures are reported
// =============================================================================

// DiagnosticSink receives a record of failures the context is about to
// surface as errors. It is called at most once per failure, outside the
// context lock, and on a best-effort basis: a panicking sink is ignored.
//
// Implementations should be thread-safe as they may be called concurrently.
type DiagnosticSink interface {
	RecordFailure(kind FailureKind, message string)
}

// NilDiagnosticSink drops every record.
type NilDiagnosticSink struct{}

// RecordFailure is a no-op.
func (NilDiagnosticSink) RecordFailure(kind FailureKind, message string) {}

// LoggerDiagnosticSink writes failures to a Logger at error level.
type LoggerDiagnosticSink struct {
	Logger Logger
}

// RecordFailure logs the failure.
func (s *LoggerDiagnosticSink) RecordFailure(kind FailureKind, message string) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Error(message, F("kind", string(kind)))
}

// MultiDiagnosticSink fans a record out to several sinks in order.
// A panic in one sink does not prevent the others from being called.
type MultiDiagnosticSink []DiagnosticSink

// RecordFailure forwards to every non-nil sink.
func (m MultiDiagnosticSink) RecordFailure(kind FailureKind, message string) {
	for _, s := range m {
		recordFailure(s, kind, message)
	}
}

// recordFailure calls sink, swallowing a nil sink and any panic it raises.
func recordFailure(sink DiagnosticSink, kind FailureKind, message string) {
	if sink == nil {
		return
	}
	defer func() { _ = recover() }()
	sink.RecordFailure(kind, message)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting dispatch latency.
type Metrics interface {
	// RecordItemDuration records how long a callback took to execute.
	// inline is true for a Send executed directly on the owning goroutine.
	RecordItemDuration(contextName string, inline bool, duration time.Duration)

	// RecordItemPanic records that a callback panicked.
	RecordItemPanic(contextName string, panicInfo any)

	// RecordQueueDepth records the queue depth after an enqueue or dequeue.
	RecordQueueDepth(contextName string, depth int)

	// RecordItemRejected records that Post or Send refused work.
	RecordItemRejected(contextName string, reason string)

	// RecordItemsDiscarded records queued items thrown away by a forced shutdown.
	RecordItemsDiscarded(contextName string, count int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordItemDuration is a no-op.
func (m *NilMetrics) RecordItemDuration(contextName string, inline bool, duration time.Duration) {}

// RecordItemPanic is a no-op.
func (m *NilMetrics) RecordItemPanic(contextName string, panicInfo any) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(contextName string, depth int) {}

// RecordItemRejected is a no-op.
func (m *NilMetrics) RecordItemRejected(contextName string, reason string) {}

// RecordItemsDiscarded is a no-op.
func (m *NilMetrics) RecordItemsDiscarded(contextName string, count int) {}

// =============================================================================
// ContextConfig: Configuration for SingleThreadContext
// =============================================================================

// ContextConfig holds configuration options for SingleThreadContext.
// All fields are optional; zero values are replaced by defaults.
type ContextConfig struct {
	// Name identifies the context in logs and metrics.
	// Defaults to "single-thread-" followed by a short random id.
	Name string

	// Logger receives lifecycle logs. Defaults to NoOpLogger.
	Logger Logger

	// Metrics receives execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// DiagnosticSink is told about shutdown timeouts. Defaults to NilDiagnosticSink.
	DiagnosticSink DiagnosticSink

	// LockOSThread pins the goroutine that calls Run to its OS thread for the
	// lifetime of the loop, for callbacks relying on thread-local state (cgo, UI toolkits).
	LockOSThread bool

	// HistoryCapacity bounds RecentExecutions. Defaults to 100.
	HistoryCapacity int
}

// DefaultContextConfig returns a config with default handlers.
func DefaultContextConfig() *ContextConfig {
	return &ContextConfig{
		Name:            newContextName(),
		Logger:          NewNoOpLogger(),
		Metrics:         &NilMetrics{},
		DiagnosticSink:  NilDiagnosticSink{},
		HistoryCapacity: defaultHistoryCapacity,
	}
}

// withDefaults returns a copy of c with every empty field filled in.
func (c *ContextConfig) withDefaults() ContextConfig {
	out := *DefaultContextConfig()
	if c == nil {
		return out
	}
	if c.Name != "" {
		out.Name = c.Name
	}
	if c.Logger != nil {
		out.Logger = c.Logger
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	if c.DiagnosticSink != nil {
		out.DiagnosticSink = c.DiagnosticSink
	}
	if c.HistoryCapacity > 0 {
		out.HistoryCapacity = c.HistoryCapacity
	}
	out.LockOSThread = c.LockOSThread
	return out
}
