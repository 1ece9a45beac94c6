package telemetry

import (
	"sync"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
)

// Queue is the ordered buffer of pending events. Every mutation happens under
// one lock, so appends, takes and requeues never interleave.
type Queue struct {
	mu       sync.Mutex
	events   []events.Event
	capacity int

	// dropped counts evictions not yet reserved by a batch.
	dropped      uint64
	droppedTotal uint64
}

// NewQueue returns a queue that evicts its oldest events beyond capacity.
// A capacity of 0 leaves it unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Enqueue appends e and returns the new length.
func (q *Queue) Enqueue(e events.Event) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
	q.evictLocked()
	return len(q.events)
}

// Take removes up to limit events from the head. limit <= 0 drains the queue.
// The pending dropped count is reserved for the returned batch in the same
// step, so two concurrent batches never report the same evictions.
func (q *Queue) Take(limit int) ([]events.Event, uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.events)
	if n == 0 {
		return nil, 0
	}
	if limit > 0 && limit < n {
		n = limit
	}

	batch := make([]events.Event, n)
	copy(batch, q.events[:n])
	remaining := copy(q.events, q.events[n:])
	clear(q.events[remaining:])
	q.events = q.events[:remaining]

	dropped := q.dropped
	q.dropped = 0
	return batch, dropped
}

// Requeue puts a failed batch back at the head, ahead of anything enqueued
// since it was taken, and returns its reserved dropped count to the pending
// total.
func (q *Queue) Requeue(batch []events.Event, dropped uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropped += dropped
	if len(batch) == 0 {
		return
	}

	merged := make([]events.Event, 0, len(batch)+len(q.events))
	merged = append(merged, batch...)
	merged = append(merged, q.events...)
	q.events = merged
	q.evictLocked()
}

// RestoreDropped returns a reserved dropped count whose batch never reached
// the collector.
func (q *Queue) RestoreDropped(n uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropped += n
}

func (q *Queue) evictLocked() {
	if q.capacity <= 0 || len(q.events) <= q.capacity {
		return
	}
	excess := len(q.events) - q.capacity
	remaining := copy(q.events, q.events[excess:])
	clear(q.events[remaining:])
	q.events = q.events[:remaining]
	q.dropped += uint64(excess)
	q.droppedTotal += uint64(excess)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// PendingDropped returns the evictions not yet reserved by a batch.
func (q *Queue) PendingDropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// DroppedTotal returns every eviction since the queue was created.
func (q *Queue) DroppedTotal() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.droppedTotal
}
