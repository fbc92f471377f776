package harness

import (
	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
)

// TraceEvent is one phase transition in the trace.
type TraceEvent struct {
	Cycle  int64     `json:"cycle"`
	From   pod.Phase `json:"from"`
	To     pod.Phase `json:"to"`
	Reason string    `json:"reason"`
}

func traceEvent(t engine.Transition) TraceEvent {
	return TraceEvent{Cycle: t.Cycle, From: t.From, To: t.To, Reason: t.Reason}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	FinalPhase pod.Phase     `json:"final_phase"`
	Failed     pod.ModuleSet `json:"failed_modules"`
	Cycles     int64         `json:"cycles"`

	// Stopped reports whether the run flag was cleared.
	Stopped bool `json:"stopped"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Phases returns the phases visited, starting with the first From.
func (r *Result) Phases() []pod.Phase {
	if len(r.Trace) == 0 {
		return []pod.Phase{r.FinalPhase}
	}
	out := []pod.Phase{r.Trace[0].From}
	for _, e := range r.Trace {
		out = append(out, e.To)
	}
	return out
}
