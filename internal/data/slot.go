package data

import (
	"sync"
	"sync/atomic"
)

// Versioned pairs a snapshot with the sequence number of the publish that
// produced it. Seq is 0 for a domain that was never written.
type Versioned[T any] struct {
	Value T
	Seq   int64
}

// slot holds one domain's snapshot.
//
// INVARIANTS:
//   - value is only replaced as a whole, under mu
//   - at most one Writer exists per slot (owner != "" once claimed)
type slot[T any] struct {
	// seq is shared by every slot of a store, so sequence numbers order
	// publishes across domains.
	seq *atomic.Int64

	mu      sync.RWMutex
	value   T
	version int64

	claimMu sync.Mutex
	owner   string
}

func newSlot[T any](seq *atomic.Int64) *slot[T] {
	return &slot[T]{seq: seq}
}

// get returns a copy of the stored snapshot.
func (s *slot[T]) get() Versioned[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Versioned[T]{Value: s.value, Seq: s.version}
}

// set replaces the stored snapshot with a copy of v.
// The sequence number is drawn inside the critical section so that a
// higher seq always belongs to a later value on the same slot.
func (s *slot[T]) set(v T) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.version = s.seq.Add(1)
	return s.version
}

// claim records owner as the slot's only writer.
func (s *slot[T]) claim(owner string) (string, bool) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()
	if s.owner != "" {
		return s.owner, false
	}
	s.owner = owner
	return owner, true
}

func (s *slot[T]) currentOwner() string {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()
	return s.owner
}

// Writer is the exclusive write handle for one domain.
//
// A Writer is obtained from one of the Store.Claim methods and is meant to
// be held by a single loop. Set copies the snapshot into the store.
type Writer[T any] struct {
	slot  *slot[T]
	owner string
}

// Set publishes a fully populated snapshot and returns its sequence number.
// Partial updates are not supported: read-modify-write the whole snapshot.
func (w *Writer[T]) Set(v T) int64 {
	return w.slot.set(v)
}

// Get returns the last published snapshot of the writer's own domain.
func (w *Writer[T]) Get() T {
	return w.slot.get().Value
}

// Owner returns the name the domain was claimed under.
func (w *Writer[T]) Owner() string {
	return w.owner
}
