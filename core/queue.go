package core

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// workQueue is a FIFO of work items.
//
// It has no lock of its own: the owning SingleThreadContext guards it, the
// lifecycle state, and the shutdown timer with one mutex so that a state
// check and the enqueue that depends on it are a single critical section.
type workQueue struct {
	items []workItem
}

func newWorkQueue() *workQueue {
	return &workQueue{
		items: make([]workItem, 0, defaultQueueCap),
	}
}

func (q *workQueue) push(item workItem) {
	q.items = append(q.items, item)
}

func (q *workQueue) pop() (workItem, bool) {
	if len(q.items) == 0 {
		return workItem{}, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = workItem{}
	q.items = q.items[1:]
	q.maybeCompact()

	return item, true
}

// drain removes and returns every queued item in FIFO order.
func (q *workQueue) drain() []workItem {
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = make([]workItem, 0, defaultQueueCap)
	return out
}

func (q *workQueue) len() int {
	return len(q.items)
}

func (q *workQueue) isEmpty() bool {
	return len(q.items) == 0
}

// maybeCompact gives memory back after a burst: popping by reslicing keeps the
// original backing array alive until it is reallocated.
func (q *workQueue) maybeCompact() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]workItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]workItem, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}
