package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-thread-affinity/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	itemDurationSeconds *prom.HistogramVec
	itemPanicTotal      *prom.CounterVec
	itemRejectedTotal   *prom.CounterVec
	itemDiscardedTotal  *prom.CounterVec
	queueDepth          *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
// Registering twice against the same registry reuses the existing collectors.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "affinity"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "item_duration_seconds",
		Help:      "Callback execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"context", "mode"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "item_panic_total",
		Help:      "Total number of callbacks that panicked.",
	}, []string{"context"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "item_rejected_total",
		Help:      "Total number of work items refused by Post or Send.",
	}, []string{"context", "reason"})
	discardedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "item_discarded_total",
		Help:      "Total number of queued work items discarded by a forced shutdown.",
	}, []string{"context"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current work queue depth.",
	}, []string{"context"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if discardedVec, err = registerCollector(reg, discardedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		itemDurationSeconds: durationVec,
		itemPanicTotal:      panicVec,
		itemRejectedTotal:   rejectedVec,
		itemDiscardedTotal:  discardedVec,
		queueDepth:          queueDepthVec,
	}, nil
}

// RecordItemDuration records callback execution duration.
func (m *MetricsExporter) RecordItemDuration(contextName string, inline bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.itemDurationSeconds.WithLabelValues(normalizeLabel(contextName, "unknown"), modeLabel(inline)).Observe(duration.Seconds())
}

// RecordItemPanic records callback panics.
func (m *MetricsExporter) RecordItemPanic(contextName string, panicInfo any) {
	if m == nil {
		return
	}
	m.itemPanicTotal.WithLabelValues(normalizeLabel(contextName, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(contextName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(contextName, "unknown")).Set(float64(depth))
}

// RecordItemRejected records rejected work.
func (m *MetricsExporter) RecordItemRejected(contextName string, reason string) {
	if m == nil {
		return
	}
	m.itemRejectedTotal.WithLabelValues(normalizeLabel(contextName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordItemsDiscarded records work discarded by a forced shutdown.
func (m *MetricsExporter) RecordItemsDiscarded(contextName string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.itemDiscardedTotal.WithLabelValues(normalizeLabel(contextName, "unknown")).Add(float64(count))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func modeLabel(inline bool) string {
	if inline {
		return "inline"
	}
	return "queued"
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
