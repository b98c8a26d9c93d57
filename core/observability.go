package core

import "time"

// ExecutionRecord captures one finished callback execution.
type ExecutionRecord struct {
	// Seq numbers executions of one context in the order they started.
	Seq         uint64
	ContextName string
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	// Inline is true for a Send executed directly on the owning goroutine.
	Inline   bool
	Panicked bool
}

// ContextStats is a point-in-time snapshot of a SingleThreadContext.
type ContextStats struct {
	Name      string
	State     State
	Pending   int
	Executed  int64
	Rejected  int64
	Discarded int64
	Running   bool
	LastRunAt time.Time
}
