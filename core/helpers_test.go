package core

import (
	"sync"
	"testing"
	"time"
)

type recordedFailure struct {
	kind    FailureKind
	message string
}

// recordingSink is a DiagnosticSink that remembers every record.
type recordingSink struct {
	mu      sync.Mutex
	records []recordedFailure
}

func (s *recordingSink) RecordFailure(kind FailureKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recordedFailure{kind: kind, message: message})
}

func (s *recordingSink) snapshot() []recordedFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedFailure(nil), s.records...)
}

// recordingMetrics is a Metrics implementation that counts calls.
type recordingMetrics struct {
	mu         sync.Mutex
	durations  int
	inline     int
	panics     int
	rejected   map[string]int
	discarded  int
	lastDepth  int
	depthCalls int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{rejected: make(map[string]int)}
}

func (m *recordingMetrics) RecordItemDuration(contextName string, inline bool, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
	if inline {
		m.inline++
	}
}

func (m *recordingMetrics) RecordItemPanic(contextName string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *recordingMetrics) RecordQueueDepth(contextName string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastDepth = depth
	m.depthCalls++
}

func (m *recordingMetrics) RecordItemRejected(contextName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *recordingMetrics) RecordItemsDiscarded(contextName string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded += count
}

// runAsync starts Run on a new goroutine and returns a channel with its result.
func runAsync(c *SingleThreadContext) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run()
	}()
	return errCh
}

// waitRun waits for the result of runAsync, failing the test after timeout.
func waitRun(t *testing.T, errCh <-chan error, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		t.Fatalf("Run did not return within %v", timeout)
		return nil
	}
}

// waitState polls until c reaches want or the timeout expires.
func waitState(t *testing.T, c *SingleThreadContext, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, want %v after %v", c.State(), want, timeout)
}
