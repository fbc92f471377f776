package recorder

import (
	"sync"

	"github.com/roach88/podctl/internal/engine"
)

// event is one engine notification waiting to be written.
// Exactly one field is set.
type event struct {
	transition *engine.Transition
	change     *engine.StatusChange
}

// eventQueue buffers engine events for the recorder loop.
//
// Put never blocks and the queue has no bound: the engine must not wait on
// SQLite, and a run produces at most a few hundred events. The recorder
// takes events in batches so that a burst of status changes in one cycle
// costs one SQLite commit.
type eventQueue struct {
	mu      sync.Mutex
	pending []event
	closed  bool

	// ready holds at most one token; Put after Take re-arms it.
	ready chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

// Put appends e. Returns false once the queue is closed.
func (q *eventQueue) Put(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.pending = append(q.pending, e)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Take removes and returns up to max events in arrival order. A max of 0
// or less takes everything.
func (q *eventQueue) Take(max int) []event {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if max > 0 && n > max {
		n = max
	}
	if n == 0 {
		return nil
	}
	batch := make([]event, n)
	copy(batch, q.pending)
	q.pending = append(q.pending[:0], q.pending[n:]...)
	return batch
}

// Ready fires when events may be pending, and stays closed after Close.
func (q *eventQueue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of pending events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drained reports whether the queue is closed and empty.
func (q *eventQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.pending) == 0
}

// Close rejects further events. Pending events can still be taken.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ready)
	}
}
