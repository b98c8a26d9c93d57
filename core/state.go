package core

import "time"

// =============================================================================
// State: Lifecycle of a SingleThreadContext
// =============================================================================

// State is the lifecycle state of a SingleThreadContext.
//
// Transitions only move forward:
//
//	StateNotStarted → StateRunning → StateShuttingDown → StateShutDown
//
// A ShutDown requested before Run moves StateNotStarted straight to
// StateShuttingDown; Run then drains the queue and stops.
type State int32

const (
	// StateNotStarted: constructed, Run has not been called yet.
	StateNotStarted State = iota

	// StateRunning: the dispatch loop owns a goroutine and executes work.
	StateRunning

	// StateShuttingDown: ShutDown was requested; queued work may still drain
	// until the grace period elapses.
	StateShuttingDown

	// StateShutDown: terminal. Nothing is accepted or executed anymore.
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutDown:
		return "shut_down"
	default:
		return "unknown"
	}
}

// Event is something that may move the lifecycle forward.
type Event int

const (
	// EventRun: Run was called.
	EventRun Event = iota

	// EventShutDown: ShutDown (or Dispose/Close) was called.
	EventShutDown

	// EventEnqueue: a producer is about to append a work item.
	EventEnqueue

	// EventDequeue: the dispatch loop is about to take the next work item,
	// or found the queue empty.
	EventDequeue
)

func (e Event) String() string {
	switch e {
	case EventRun:
		return "run"
	case EventShutDown:
		return "shutdown"
	case EventEnqueue:
		return "enqueue"
	case EventDequeue:
		return "dequeue"
	default:
		return "unknown"
	}
}

// TransitionInput carries the facts Transition needs besides the current state.
type TransitionInput struct {
	// Started is true once Run has been entered.
	Started bool

	// QueueEmpty reports whether the work queue holds no items.
	QueueEmpty bool

	// Elapsed is the time since shutdown was first requested. Zero before that.
	Elapsed time.Duration

	// Grace is the configured shutdown grace period.
	Grace time.Duration
}

// Transition computes the state that follows s when ev happens.
//
// It has no side effects and does not look at the clock, so every rule of the
// lifecycle can be tested without goroutines. A non-nil error means the event
// is rejected; the returned state is still the one the context must store
// (an expired grace period escalates to StateShutDown while rejecting).
//
// Producers reject once Elapsed >= Grace. The dispatch loop only aborts once
// Elapsed > Grace, so work queued before the deadline is not punished for
// arriving exactly on it.
func Transition(s State, ev Event, in TransitionInput) (State, error) {
	switch ev {
	case EventRun:
		if in.Started {
			return s, ErrReentrancy
		}
		switch s {
		case StateNotStarted:
			return StateRunning, nil
		case StateShuttingDown:
			return StateShuttingDown, nil
		default:
			return s, ErrReentrancy
		}

	case EventShutDown:
		if s == StateNotStarted || s == StateRunning {
			return StateShuttingDown, nil
		}
		return s, nil

	case EventEnqueue:
		switch s {
		case StateShutDown:
			return StateShutDown, ErrShutdownTimeout
		case StateShuttingDown:
			if in.Elapsed >= in.Grace {
				return StateShutDown, ErrShutdownTimeout
			}
		}
		return s, nil

	case EventDequeue:
		switch s {
		case StateShutDown:
			// A producer escalated while the loop was busy. Only report a
			// timeout if there is work left to discard.
			if in.QueueEmpty {
				return StateShutDown, nil
			}
			return StateShutDown, ErrShutdownTimeout
		case StateShuttingDown:
			if in.QueueEmpty {
				return StateShutDown, nil
			}
			if in.Elapsed > in.Grace {
				return StateShutDown, ErrShutdownTimeout
			}
		}
		return s, nil
	}

	return s, nil
}
