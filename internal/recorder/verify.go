package recorder

import (
	"context"
	"fmt"

	"github.com/roach88/podctl/internal/pod"
)

// IssueKind categorizes a verification finding.
type IssueKind string

const (
	// IssueIllegalEdge is a transition the transition graph does not allow.
	IssueIllegalEdge IssueKind = "ILLEGAL_EDGE"
	// IssueBrokenChain is a transition whose From is not the previous To,
	// meaning a transition was lost.
	IssueBrokenChain IssueKind = "BROKEN_CHAIN"
	// IssueSeqRegression is a publish seq that did not increase.
	IssueSeqRegression IssueKind = "SEQ_REGRESSION"
	// IssueOrdinalGap is a missing ordinal.
	IssueOrdinalGap IssueKind = "ORDINAL_GAP"
	// IssueFinalMismatch is a recorded final phase that differs from the
	// last transition.
	IssueFinalMismatch IssueKind = "FINAL_MISMATCH"
)

// Issue is one verification finding.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Ordinal int       `json:"ordinal"`
	Message string    `json:"message"`
}

// RunState is the result of replaying a run's transition log.
type RunState struct {
	Run         Run                `json:"run"`
	Transitions []TransitionRecord `json:"transitions"`
	Phases      []pod.Phase        `json:"phases"`
	Final       pod.Phase          `json:"final"`
	Terminal    bool               `json:"terminal"`  // True if the run ended in a terminal phase
	FailSafe    bool               `json:"fail_safe"` // True if any fail-safe phase was entered
	LastSeq     int64              `json:"last_seq"`
	Issues      []Issue            `json:"issues,omitempty"`
}

// Valid reports whether the replay found no issues.
func (s RunState) Valid() bool {
	return len(s.Issues) == 0
}

// VerifyRun replays the transitions of a run against the transition graph.
//
// Starting from Idle, every transition must chain from the previous one,
// be an allowed edge, and carry an increasing publish seq. A run that was
// ended with EndRun must have a final phase equal to the last replayed one.
func (s *Store) VerifyRun(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("verify run: %w", err)
	}
	trs, err := s.ReadTransitions(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("verify run: %w", err)
	}

	state := RunState{
		Run:         run,
		Transitions: trs,
		Phases:      []pod.Phase{pod.PhaseIdle},
		Final:       pod.PhaseIdle,
	}

	for i, tr := range trs {
		if want := i + 1; tr.Ordinal != want {
			state.Issues = append(state.Issues, Issue{
				Kind:    IssueOrdinalGap,
				Ordinal: tr.Ordinal,
				Message: fmt.Sprintf("expected ordinal %d", want),
			})
		}
		if tr.From != state.Final {
			state.Issues = append(state.Issues, Issue{
				Kind:    IssueBrokenChain,
				Ordinal: tr.Ordinal,
				Message: fmt.Sprintf("transition starts at %s but the run was in %s", tr.From, state.Final),
			})
		}
		if !pod.CanTransition(tr.From, tr.To) {
			state.Issues = append(state.Issues, Issue{
				Kind:    IssueIllegalEdge,
				Ordinal: tr.Ordinal,
				Message: fmt.Sprintf("%s -> %s is not an allowed transition", tr.From, tr.To),
			})
		}
		if tr.Seq <= state.LastSeq {
			state.Issues = append(state.Issues, Issue{
				Kind:    IssueSeqRegression,
				Ordinal: tr.Ordinal,
				Message: fmt.Sprintf("seq %d after %d", tr.Seq, state.LastSeq),
			})
		}

		state.LastSeq = tr.Seq
		state.Final = tr.To
		state.Phases = append(state.Phases, tr.To)
		if tr.To.IsFailSafe() {
			state.FailSafe = true
		}
	}

	state.Terminal = state.Final.IsTerminal()
	if run.Ended && run.FinalPhase != state.Final {
		state.Issues = append(state.Issues, Issue{
			Kind:    IssueFinalMismatch,
			Ordinal: len(trs),
			Message: fmt.Sprintf("run ended in %s but transitions end in %s", run.FinalPhase, state.Final),
		})
	}
	return state, nil
}
