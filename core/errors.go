package core

import "errors"

var (
	// ErrReentrancy is returned by Run when the dispatch loop has already been
	// started, or when the context has already shut down.
	ErrReentrancy = errors.New("core: Run called on a single-thread context that is already running or has shut down")

	// ErrShutdownTimeout is returned when the shutdown grace period has elapsed.
	// Producers receive it when their work is rejected; Run returns it when the
	// remaining queued work was discarded.
	ErrShutdownTimeout = errors.New("core: shutdown grace period elapsed before the work queue drained")

	// ErrCallbackPanicked is returned by a cross-goroutine Send whose callback
	// panicked on the dispatch goroutine. The panic itself propagates out of Run.
	ErrCallbackPanicked = errors.New("core: callback panicked on the dispatch goroutine")
)

// FailureKind classifies a failure reported to a DiagnosticSink.
type FailureKind string

const (
	// FailureShutdownTimeout is recorded right before ErrShutdownTimeout is returned.
	FailureShutdownTimeout FailureKind = "shutdown_timeout"
)
