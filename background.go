package affinity

import "time"

// RunInBackground creates a context and starts its dispatch loop on a new,
// dedicated goroutine. The returned channel receives Run's result once and is
// then closed.
//
// Use this when no existing goroutine should be donated to the context, e.g.
// to give a non-thread-safe resource its own owner. Set config.LockOSThread to
// also pin that goroutine to an OS thread.
func RunInBackground(gracePeriod time.Duration, config *ContextConfig) (*SingleThreadContext, <-chan error) {
	c := NewSingleThreadContextWithConfig(gracePeriod, config)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		errc <- c.Run()
	}()
	return c, errc
}
