package core

import "sync"

// Callback is the unit of work scheduled on a SingleThreadContext.
// state is the opaque argument handed to Post or Send.
type Callback func(state any)

// completion is the one-shot signal a cross-goroutine Send blocks on.
// It is created per Send call and fired exactly once by whoever finishes
// the item: the dispatch loop, or a forced shutdown that discarded it.
type completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// fire records err and releases the waiter. Later calls are ignored.
// The write to err happens-before the close, so wait observes it.
func (c *completion) fire(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *completion) wait() error {
	<-c.done
	return c.err
}

// workItem is immutable once built.
type workItem struct {
	callback   Callback
	state      any
	completion *completion // nil for Post
}
