package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-thread-affinity/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type contextStub struct {
	stats core.ContextStats
}

func (s contextStub) Stats() core.ContextStats { return s.stats }

func TestSnapshotPoller_CollectsContextStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddContext("ui", contextStub{stats: core.ContextStats{
		Name:      "ui",
		State:     core.StateShuttingDown,
		Pending:   3,
		Executed:  10,
		Rejected:  2,
		Discarded: 1,
		Running:   true,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(poller.pending.WithLabelValues("ui")) == 3
	})

	if got := testutil.ToFloat64(poller.executed.WithLabelValues("ui")); got != 10 {
		t.Fatalf("executed gauge = %v, want 10", got)
	}
	if got := testutil.ToFloat64(poller.state.WithLabelValues("ui")); got != float64(core.StateShuttingDown) {
		t.Fatalf("state gauge = %v, want %d", got, core.StateShuttingDown)
	}
	if got := testutil.ToFloat64(poller.running.WithLabelValues("ui")); got != 1 {
		t.Fatalf("running gauge = %v, want 1", got)
	}
}

func TestSnapshotPoller_RealContext(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	c := core.NewSingleThreadContextWithConfig(time.Second, &core.ContextConfig{Name: "real"})
	for i := 0; i < 4; i++ {
		if err := c.Post(func(any) {}, nil); err != nil {
			t.Fatalf("Post failed: %v", err)
		}
	}
	poller.AddContext(c.Name(), c)

	poller.CollectOnce()
	if got := testutil.ToFloat64(poller.pending.WithLabelValues("real")); got != 4 {
		t.Fatalf("pending before run = %v, want 4", got)
	}

	c.ShutDown()
	if err := c.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	poller.CollectOnce()
	if got := testutil.ToFloat64(poller.pending.WithLabelValues("real")); got != 0 {
		t.Errorf("pending after run = %v, want 0", got)
	}
	if got := testutil.ToFloat64(poller.executed.WithLabelValues("real")); got != 4 {
		t.Errorf("executed = %v, want 4", got)
	}
	if got := testutil.ToFloat64(poller.state.WithLabelValues("real")); got != float64(core.StateShutDown) {
		t.Errorf("state = %v, want %d", got, core.StateShutDown)
	}

	poller.RemoveContext("real")
	if got := testutil.CollectAndCount(poller.pending); got != 0 {
		t.Errorf("series after RemoveContext = %d, want 0", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
