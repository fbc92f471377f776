package engine

import (
	"sync"
	"time"

	"github.com/roach88/podctl/internal/pod"
)

// Transition is one published phase change.
type Transition struct {
	From   pod.Phase `json:"from"`
	To     pod.Phase `json:"to"`
	Reason string    `json:"reason"`

	// Cycle is the engine cycle that produced the transition.
	Cycle int64 `json:"cycle"`
	// Seq is the store publish sequence of the new StateMachineData.
	Seq int64 `json:"seq"`

	At            time.Time     `json:"at"`
	FailedModules pod.ModuleSet `json:"failed_modules"`
}

// StatusChange is a module status difference seen between two cycles.
type StatusChange struct {
	Module pod.Module       `json:"module"`
	From   pod.ModuleStatus `json:"from"`
	To     pod.ModuleStatus `json:"to"`
	Cycle  int64            `json:"cycle"`
	At     time.Time        `json:"at"`
}

// Observer receives engine events.
//
// Observers are called synchronously from the engine's cycle and must not
// block; hand the event to another goroutine if the work is slow.
type Observer interface {
	OnTransition(Transition)
	OnStatusChange(StatusChange)
}

// Trace is an Observer that keeps every event in memory.
// Safe for concurrent use.
type Trace struct {
	mu          sync.Mutex
	transitions []Transition
	changes     []StatusChange
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// OnTransition implements Observer.
func (t *Trace) OnTransition(tr Transition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transitions = append(t.transitions, tr)
}

// OnStatusChange implements Observer.
func (t *Trace) OnStatusChange(c StatusChange) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.changes = append(t.changes, c)
}

// Transitions returns a copy of the recorded transitions in order.
func (t *Trace) Transitions() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.transitions))
	copy(out, t.transitions)
	return out
}

// StatusChanges returns a copy of the recorded status changes in order.
func (t *Trace) StatusChanges() []StatusChange {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StatusChange, len(t.changes))
	copy(out, t.changes)
	return out
}

// Phases returns the phase sequence starting from the first From.
// An empty trace returns nil.
func (t *Trace) Phases() []pod.Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.transitions) == 0 {
		return nil
	}
	out := make([]pod.Phase, 0, len(t.transitions)+1)
	out = append(out, t.transitions[0].From)
	for _, tr := range t.transitions {
		out = append(out, tr.To)
	}
	return out
}
