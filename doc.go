// Package affinity provides a single-thread affinity context for Go.
//
// A SingleThreadContext serializes work onto exactly one goroutine: the one
// that calls Run. Any goroutine may Post work (fire-and-forget) or Send work
// (block until it has run). Callbacks execute one at a time, in the order they
// were queued, so state owned by the context needs no locks.
//
// # Quick Start
//
// Donate the current goroutine to the context:
//
//	ctx := affinity.NewSingleThreadContext(2 * time.Second)
//
//	go func() {
//		ctx.Post(func(state any) {
//			fmt.Println("runs on the owning goroutine:", state)
//		}, "hello")
//		ctx.ShutDown()
//	}()
//
//	if err := ctx.Run(); err != nil {
//		// affinity.ErrShutdownTimeout: the queue did not drain in time
//	}
//
// Or let the package start a dedicated goroutine for it:
//
//	ctx, errc := affinity.RunInBackground(time.Second, nil)
//	ctx.Send(func(any) { /* ... */ }, nil)
//	ctx.ShutDown()
//	err := <-errc
//
// # Key Concepts
//
// Lifecycle: NotStarted -> Running -> ShuttingDown -> ShutDown. Run may be
// called exactly once; a second call returns ErrReentrancy.
//
// Send from the owner: calling Send from inside a callback runs the new
// callback immediately instead of queueing it, so it can never deadlock.
//
// Grace period: ShutDown lets queued work drain for at most the grace period.
// Past it, new work is rejected with ErrShutdownTimeout and Run discards what
// is still queued, returning the same error.
//
// # Thread Safety
//
// Post, Send, ShutDown, Dispose and the observability methods are safe from
// any goroutine. With ContextConfig.LockOSThread the dispatch goroutine is
// also pinned to one OS thread for the lifetime of the loop, for callbacks
// that rely on thread-local state (cgo, UI toolkits).
//
// # Observability
//
// Logging goes through core.Logger (see observability/zaplog), metrics through
// core.Metrics (see observability/prometheus) and shutdown failures through
// core.DiagnosticSink (see observability/zaplog and observability/otelsink).
//
// For more details, see https://github.com/Swind/go-thread-affinity
package affinity
