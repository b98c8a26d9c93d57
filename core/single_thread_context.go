package core

import (
	"context"
	"maps"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// SingleThreadContext runs every scheduled callback, in order, on the one
// goroutine that calls Run (Thread Affinity).
//
// Use cases:
// 1. Simulating a Main Thread / UI Thread that must never be re-entered concurrently
// 2. CGO calls that require Thread Local Storage (see ContextConfig.LockOSThread)
// 3. Serialising access to a non-thread-safe resource without locks
//
// Key differences from SingleThreadTaskRunner-style runners:
// - The caller donates the goroutine: Run blocks until the context shuts down
// - Send blocks its caller until the callback has run, and runs inline when
//   called from the dispatch goroutine itself
// - ShutDown drains queued work for at most a grace period
//
// State, queue and shutdown timer are guarded by a single mutex; callbacks
// always execute with the mutex released.
type SingleThreadContext struct {
	grace        time.Duration
	logger       Logger
	metrics      Metrics
	sink         DiagnosticSink
	lockOSThread bool

	mu         sync.Mutex
	cond       *sync.Cond
	state      State
	started    bool
	shutdownAt time.Time
	queue      *workQueue

	// Goroutine ID of the running dispatch loop, 0 when no loop runs.
	owner    atomic.Uint64
	done     chan struct{}
	doneOnce sync.Once

	seq       atomic.Uint64
	executed  atomic.Int64
	rejected  atomic.Int64
	discarded atomic.Int64
	history   *executionHistory

	// Metadata
	metaMu   sync.Mutex
	name     string
	metadata map[string]any
}

// NewSingleThreadContext creates a context with default configuration.
// gracePeriod bounds how long queued work may still drain after ShutDown.
func NewSingleThreadContext(gracePeriod time.Duration) *SingleThreadContext {
	return NewSingleThreadContextWithConfig(gracePeriod, nil)
}

// NewSingleThreadContextWithConfig creates a context with custom handlers.
// A nil config is the same as DefaultContextConfig(). A negative grace period
// is treated as zero.
func NewSingleThreadContextWithConfig(gracePeriod time.Duration, config *ContextConfig) *SingleThreadContext {
	cfg := config.withDefaults()
	if gracePeriod < 0 {
		gracePeriod = 0
	}

	c := &SingleThreadContext{
		grace:        gracePeriod,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		sink:         cfg.DiagnosticSink,
		lockOSThread: cfg.LockOSThread,
		queue:        newWorkQueue(),
		done:         make(chan struct{}),
		history:      newExecutionHistory(cfg.HistoryCapacity),
		name:         cfg.Name,
		metadata:     make(map[string]any),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Name returns the name of the context
func (c *SingleThreadContext) Name() string {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	return c.name
}

// SetName sets the name of the context
func (c *SingleThreadContext) SetName(name string) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	c.name = name
}

// Metadata returns a copy of the metadata associated with the context
func (c *SingleThreadContext) Metadata() map[string]any {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	return maps.Clone(c.metadata)
}

// SetMetadata sets a metadata key-value pair
func (c *SingleThreadContext) SetMetadata(key string, value any) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	c.metadata[key] = value
}

// GracePeriod returns the configured shutdown grace period.
func (c *SingleThreadContext) GracePeriod() time.Duration {
	return c.grace
}

// State returns the current lifecycle state.
func (c *SingleThreadContext) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOwningThread reports whether the caller is the goroutine currently
// executing Run.
func (c *SingleThreadContext) IsOwningThread() bool {
	owner := c.owner.Load()
	return owner != 0 && owner == goroutineID()
}

// Done is closed when Run returns, whichever way it returns.
func (c *SingleThreadContext) Done() <-chan struct{} {
	return c.done
}

// =============================================================================
// Scheduling
// =============================================================================

// Post queues callback to run on the dispatch goroutine and returns
// immediately. It may be called from any goroutine, before Run, and during
// the shutdown grace window.
//
// Returns ErrShutdownTimeout if the context has shut down or the grace
// period has elapsed; the work will never run.
func (c *SingleThreadContext) Post(callback Callback, state any) error {
	if callback == nil {
		panic("core: Post called with nil callback")
	}
	return c.enqueue(workItem{callback: callback, state: state})
}

// Send runs callback on the dispatch goroutine and blocks until it finishes.
// When it returns nil, every effect of callback is visible to the caller.
//
// Called from the dispatch goroutine itself (from inside another callback),
// Send invokes callback immediately without queueing, so a callback can
// dispatch blocking work to its own context without deadlocking.
//
// Returns ErrShutdownTimeout if the work was rejected, or was discarded by a
// forced shutdown before running. Returns ErrCallbackPanicked if callback
// panicked; the panic itself propagates out of Run.
func (c *SingleThreadContext) Send(callback Callback, state any) error {
	if callback == nil {
		panic("core: Send called with nil callback")
	}

	if c.IsOwningThread() {
		c.execute(workItem{callback: callback, state: state}, true)
		return nil
	}

	done := newCompletion()
	if err := c.enqueue(workItem{callback: callback, state: state, completion: done}); err != nil {
		return err
	}
	return done.wait()
}

func (c *SingleThreadContext) enqueue(item workItem) error {
	c.mu.Lock()
	prev := c.state
	next, err := Transition(c.state, EventEnqueue, c.transitionInputLocked())
	c.state = next
	if err != nil {
		// Wake the loop so it observes the escalation. With no loop ever
		// started nobody else will discard the queue, so do it here.
		c.cond.Broadcast()
		var dropped []workItem
		if !c.started {
			dropped = c.queue.drain()
		}
		elapsed := c.elapsedLocked()
		c.mu.Unlock()

		if len(dropped) > 0 {
			c.abandon(dropped, elapsed)
		}
		name := c.Name()
		c.rejected.Add(1)
		c.metrics.RecordItemRejected(name, string(FailureShutdownTimeout))
		if prev != StateShutDown {
			c.logger.Error("Shutdown grace period elapsed, rejecting new work",
				F("context", name), F("grace", c.grace), F("elapsed", elapsed))
		}
		recordFailure(c.sink, FailureShutdownTimeout, err.Error())
		return err
	}

	c.queue.push(item)
	depth := c.queue.len()
	c.cond.Signal()
	c.mu.Unlock()

	c.metrics.RecordQueueDepth(c.Name(), depth)
	return nil
}

// =============================================================================
// Lifecycle
// =============================================================================

// Run turns the calling goroutine into the dispatch goroutine and executes
// queued callbacks in FIFO order until the context shuts down.
//
// Run must be called exactly once. A second call, from any goroutine, returns
// ErrReentrancy immediately. Run is still accepted after a ShutDown issued
// before it: it drains what was queued and stops. Once a producer has seen
// the grace period expire on a context that never ran, Run returns
// ErrReentrancy and the queued work has already been discarded.
//
// Run returns nil when the queue drained after ShutDown, or ErrShutdownTimeout
// when the grace period elapsed first with work still queued; that work is
// then discarded. A producer rejected after the last queued item started does
// not turn a complete drain into an error.
// A panicking callback is not recovered: the panic propagates out of Run and
// dispatch stops with the queue left as it is.
func (c *SingleThreadContext) Run() error {
	c.mu.Lock()
	next, err := Transition(c.state, EventRun, c.transitionInputLocked())
	if err != nil {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("Run rejected", F("context", c.Name()), F("state", state.String()))
		return err
	}
	c.state = next
	c.started = true
	c.mu.Unlock()

	defer c.doneOnce.Do(func() { close(c.done) })

	if c.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	c.owner.Store(goroutineID())
	defer c.owner.Store(0)

	c.logger.Info("Dispatch loop started", F("context", c.Name()), F("lock_os_thread", c.lockOSThread))

	for {
		item, ok, err := c.next()
		if err != nil {
			return err
		}
		if !ok {
			c.logger.Info("Dispatch loop drained", F("context", c.Name()), F("executed", c.executed.Load()))
			return nil
		}
		c.execute(item, false)
	}
}

// next blocks until there is an item to run or the loop must stop.
// ok is false with a nil error on a clean drain.
func (c *SingleThreadContext) next() (item workItem, ok bool, err error) {
	c.mu.Lock()
	for c.queue.isEmpty() && c.state == StateRunning {
		c.cond.Wait()
	}

	next, err := Transition(c.state, EventDequeue, c.transitionInputLocked())
	c.state = next
	if err != nil {
		dropped := c.queue.drain()
		elapsed := c.elapsedLocked()
		c.cond.Broadcast()
		c.mu.Unlock()

		c.abandon(dropped, elapsed)
		recordFailure(c.sink, FailureShutdownTimeout, err.Error())
		return workItem{}, false, err
	}
	if next == StateShutDown {
		c.mu.Unlock()
		return workItem{}, false, nil
	}

	item, _ = c.queue.pop()
	depth := c.queue.len()
	c.mu.Unlock()

	c.metrics.RecordQueueDepth(c.Name(), depth)
	return item, true, nil
}

// abandon accounts for work thrown away by a forced shutdown and releases
// every Send still waiting on it.
func (c *SingleThreadContext) abandon(dropped []workItem, elapsed time.Duration) {
	name := c.Name()
	for _, item := range dropped {
		if item.completion != nil {
			item.completion.fire(ErrShutdownTimeout)
		}
	}
	c.discarded.Add(int64(len(dropped)))
	c.metrics.RecordItemsDiscarded(name, len(dropped))
	c.metrics.RecordQueueDepth(name, 0)
	c.logger.Error("Shutdown grace period elapsed, discarding queued work",
		F("context", name), F("grace", c.grace), F("elapsed", elapsed), F("discarded", len(dropped)))
}

// execute runs one callback outside the lock and fires its completion.
func (c *SingleThreadContext) execute(item workItem, inline bool) {
	seq := c.seq.Add(1)
	startedAt := time.Now()
	finished := false

	defer func() {
		finishedAt := time.Now()
		name := c.Name()
		c.executed.Add(1)
		c.history.add(ExecutionRecord{
			Seq:         seq,
			ContextName: name,
			StartedAt:   startedAt,
			FinishedAt:  finishedAt,
			Duration:    finishedAt.Sub(startedAt),
			Inline:      inline,
			Panicked:    !finished,
		})
		c.metrics.RecordItemDuration(name, inline, finishedAt.Sub(startedAt))

		if finished {
			if item.completion != nil {
				item.completion.fire(nil)
			}
			return
		}

		rec := recover()
		if item.completion != nil {
			item.completion.fire(ErrCallbackPanicked)
		}
		if rec == nil {
			// runtime.Goexit: let it keep unwinding.
			return
		}
		c.metrics.RecordItemPanic(name, rec)
		c.logger.Error("Callback panicked", F("context", name), F("seq", seq), F("panic", rec))
		panic(rec)
	}()

	item.callback(item.state)
	finished = true
}

// ShutDown asks the dispatch loop to drain and stop. It never blocks and may
// be called any number of times from any goroutine; only the first call has
// an effect. It starts the grace period: queued work that has not run once
// the period has elapsed is discarded.
func (c *SingleThreadContext) ShutDown() {
	c.mu.Lock()
	next, _ := Transition(c.state, EventShutDown, c.transitionInputLocked())
	changed := next != c.state
	if changed {
		c.state = next
		c.shutdownAt = time.Now()
	}
	pending := c.queue.len()
	c.cond.Broadcast()
	c.mu.Unlock()

	if changed {
		c.logger.Info("Shutdown requested",
			F("context", c.Name()), F("grace", c.grace), F("pending", pending))
	}
}

// Dispose is ShutDown. It does not wait for the drain; use WaitShutdown for that.
func (c *SingleThreadContext) Dispose() {
	c.ShutDown()
}

// Close implements io.Closer so the context can be released with defer.
// It always returns nil.
func (c *SingleThreadContext) Close() error {
	c.Dispose()
	return nil
}

// WaitShutdown blocks until Run has returned.
//
// Returns error if context is cancelled or deadline exceeded first.
func (c *SingleThreadContext) WaitShutdown(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// Observability
// =============================================================================

// Stats returns a snapshot of the context.
func (c *SingleThreadContext) Stats() ContextStats {
	c.mu.Lock()
	state := c.state
	pending := c.queue.len()
	c.mu.Unlock()

	stats := ContextStats{
		Name:      c.Name(),
		State:     state,
		Pending:   pending,
		Executed:  c.executed.Load(),
		Rejected:  c.rejected.Load(),
		Discarded: c.discarded.Load(),
		Running:   c.owner.Load() != 0,
	}
	if last, ok := c.history.last(); ok {
		stats.LastRunAt = last.StartedAt
	}
	return stats
}

// RecentExecutions returns up to limit execution records, newest first.
// limit <= 0 returns everything retained.
func (c *SingleThreadContext) RecentExecutions(limit int) []ExecutionRecord {
	return c.history.recent(limit)
}

func (c *SingleThreadContext) transitionInputLocked() TransitionInput {
	return TransitionInput{
		Started:    c.started,
		QueueEmpty: c.queue.isEmpty(),
		Elapsed:    c.elapsedLocked(),
		Grace:      c.grace,
	}
}

func (c *SingleThreadContext) elapsedLocked() time.Duration {
	if c.shutdownAt.IsZero() {
		return 0
	}
	return time.Since(c.shutdownAt)
}
