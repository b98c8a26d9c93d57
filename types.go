package affinity

import (
	"time"

	"github.com/Swind/go-thread-affinity/core"
)

// Re-export commonly used types from core package for convenience.
// This allows users to import only the affinity package for most use cases.

// SingleThreadContext runs every callback on the goroutine that calls Run
type SingleThreadContext = core.SingleThreadContext

// Callback is the unit of work; state is passed through untouched
type Callback = core.Callback

// ContextConfig holds optional handlers and settings
type ContextConfig = core.ContextConfig

// State is the lifecycle state of a context
type State = core.State

// ContextStats is a point-in-time snapshot of a context
type ContextStats = core.ContextStats

// ExecutionRecord describes one finished callback
type ExecutionRecord = core.ExecutionRecord

// Logger, Metrics and DiagnosticSink are the injectable capabilities
type (
	Logger         = core.Logger
	Metrics        = core.Metrics
	DiagnosticSink = core.DiagnosticSink
)

// Lifecycle states
const (
	StateNotStarted   State = core.StateNotStarted
	StateRunning      State = core.StateRunning
	StateShuttingDown State = core.StateShuttingDown
	StateShutDown     State = core.StateShutDown
)

// Errors
var (
	ErrReentrancy       = core.ErrReentrancy
	ErrShutdownTimeout  = core.ErrShutdownTimeout
	ErrCallbackPanicked = core.ErrCallbackPanicked
)

// DefaultContextConfig returns a config with default handlers
var DefaultContextConfig = core.DefaultContextConfig

// NewSingleThreadContext creates a context with default configuration.
func NewSingleThreadContext(gracePeriod time.Duration) *SingleThreadContext {
	return core.NewSingleThreadContext(gracePeriod)
}

// NewSingleThreadContextWithConfig creates a context with custom handlers.
func NewSingleThreadContextWithConfig(gracePeriod time.Duration, config *ContextConfig) *SingleThreadContext {
	return core.NewSingleThreadContextWithConfig(gracePeriod, config)
}
