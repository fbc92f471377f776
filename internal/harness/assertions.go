package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/podctl/internal/pod"
)

// AssertionError is returned when an assertion fails.
// It carries the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] cycle %d: %s -> %s (%s)\n", i+1, event.Cycle, event.From, event.To, event.Reason)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure
// messages. Assertions are assumed validated by LoadScenario.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFinalPhase:
		return assertFinalPhase(result, a)
	case AssertPhaseSequence:
		return assertPhaseSequence(result, a)
	case AssertTransitionCount:
		return assertTransitionCount(result, a)
	case AssertNeverPhase:
		return assertNeverPhase(result, a)
	case AssertFailedModules:
		return assertFailedModules(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertFinalPhase(result *Result, a Assertion) error {
	want, err := pod.ParsePhase(a.Phase)
	if err != nil {
		return err
	}
	if result.FinalPhase != want {
		return &AssertionError{
			Type:     AssertFinalPhase,
			Expected: want.String(),
			Actual:   result.FinalPhase.String(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertPhaseSequence checks the visited phases match exactly.
func assertPhaseSequence(result *Result, a Assertion) error {
	got := make([]string, 0, len(result.Trace)+1)
	for _, p := range result.Phases() {
		got = append(got, p.String())
	}

	if !slices.Equal(got, a.Phases) {
		return &AssertionError{
			Type:     AssertPhaseSequence,
			Expected: strings.Join(a.Phases, " -> "),
			Actual:   strings.Join(got, " -> "),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertTransitionCount(result *Result, a Assertion) error {
	if len(result.Trace) != a.Count {
		return &AssertionError{
			Type:     AssertTransitionCount,
			Expected: fmt.Sprintf("%d transitions", a.Count),
			Actual:   fmt.Sprintf("%d transitions", len(result.Trace)),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertNeverPhase(result *Result, a Assertion) error {
	never, err := pod.ParsePhase(a.Phase)
	if err != nil {
		return err
	}
	for _, e := range result.Trace {
		if e.To == never {
			return &AssertionError{
				Type:     AssertNeverPhase,
				Expected: fmt.Sprintf("%s never entered", never),
				Actual:   fmt.Sprintf("entered on cycle %d", e.Cycle),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertFailedModules(result *Result, a Assertion) error {
	want, err := pod.ParseModuleSet(a.Modules)
	if err != nil {
		return err
	}
	if result.Failed != want {
		return &AssertionError{
			Type:     AssertFailedModules,
			Expected: want.String(),
			Actual:   result.Failed.String(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// checkTrace verifies every transition is a legal edge that follows on
// from the previous one with a later cycle.
func checkTrace(trace []TraceEvent) []string {
	var errs []string
	for i, e := range trace {
		if !pod.CanTransition(e.From, e.To) {
			errs = append(errs, fmt.Sprintf("trace[%d]: illegal transition %s -> %s", i, e.From, e.To))
		}
		if i == 0 {
			if e.From != pod.PhaseIdle {
				errs = append(errs, fmt.Sprintf("trace[0]: run starts in %s, not idle", e.From))
			}
			continue
		}
		prev := trace[i-1]
		if e.From != prev.To {
			errs = append(errs, fmt.Sprintf("trace[%d]: leaves %s but %s was entered", i, e.From, prev.To))
		}
		if e.Cycle <= prev.Cycle {
			errs = append(errs, fmt.Sprintf("trace[%d]: cycle %d does not follow %d", i, e.Cycle, prev.Cycle))
		}
	}
	return errs
}
