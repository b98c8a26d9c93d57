package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-thread-affinity/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ContextSnapshotProvider provides current context stats snapshots.
// *core.SingleThreadContext satisfies it.
type ContextSnapshotProvider interface {
	Stats() core.ContextStats
}

var _ ContextSnapshotProvider = (*core.SingleThreadContext)(nil)

// SnapshotPoller periodically exports context Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	contextsMu sync.RWMutex
	contexts   map[string]ContextSnapshotProvider

	pending   *prom.GaugeVec
	executed  *prom.GaugeVec
	rejected  *prom.GaugeVec
	discarded *prom.GaugeVec
	state     *prom.GaugeVec
	running   *prom.GaugeVec

	stateMu sync.Mutex
	polling bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "affinity",
			Name:      name,
			Help:      help,
		}, []string{"context"})
	}

	p := &SnapshotPoller{
		interval:  interval,
		contexts:  make(map[string]ContextSnapshotProvider),
		pending:   gauge("context_pending", "Number of queued work items per context."),
		executed:  gauge("context_executed", "Executed callback count snapshot."),
		rejected:  gauge("context_rejected", "Rejected work item count snapshot."),
		discarded: gauge("context_discarded", "Discarded work item count snapshot."),
		state:     gauge("context_state", "Lifecycle state (0=not_started, 1=running, 2=shutting_down, 3=shut_down)."),
		running:   gauge("context_loop_running", "Dispatch loop state (1=running, 0=stopped)."),
	}

	var err error
	for _, vec := range []**prom.GaugeVec{&p.pending, &p.executed, &p.rejected, &p.discarded, &p.state, &p.running} {
		if *vec, err = registerCollector(reg, *vec); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddContext adds or replaces a context snapshot provider by name.
func (p *SnapshotPoller) AddContext(name string, provider ContextSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "context")
	p.contextsMu.Lock()
	p.contexts[name] = provider
	p.contextsMu.Unlock()
}

// RemoveContext stops exporting the named context and deletes its series.
func (p *SnapshotPoller) RemoveContext(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "context")
	p.contextsMu.Lock()
	delete(p.contexts, name)
	p.contextsMu.Unlock()

	for _, vec := range []*prom.GaugeVec{p.pending, p.executed, p.rejected, p.discarded, p.state, p.running} {
		vec.DeleteLabelValues(name)
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.polling {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.polling = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.polling {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.polling = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

// CollectOnce exports one snapshot of every registered context immediately.
func (p *SnapshotPoller) CollectOnce() {
	if p == nil {
		return
	}
	p.collectOnce()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.contextsMu.RLock()
	defer p.contextsMu.RUnlock()

	for name, provider := range p.contexts {
		stats := provider.Stats()
		p.pending.WithLabelValues(name).Set(float64(stats.Pending))
		p.executed.WithLabelValues(name).Set(float64(stats.Executed))
		p.rejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.discarded.WithLabelValues(name).Set(float64(stats.Discarded))
		p.state.WithLabelValues(name).Set(float64(stats.State))
		if stats.Running {
			p.running.WithLabelValues(name).Set(1)
		} else {
			p.running.WithLabelValues(name).Set(0)
		}
	}
}
