package pod

import "fmt"

// Phase is the pod-wide operating phase published by the state machine.
//
// Phases are ordered by progression intent, not by numeric value:
//
//	Idle → Calibrating → Ready → Accelerating → Cruising → NominalBraking → RunComplete
//
// EmergencyBraking and FailureStopped are reachable from any non-terminal
// phase. Exiting is the shutdown phase.
type Phase int

const (
	PhaseIdle             Phase = iota // Powered, waiting for the calibrate command.
	PhaseCalibrating                   // Modules performing one-time setup.
	PhaseReady                         // Calibrated, waiting for launch.
	PhaseAccelerating                  // Propulsion driving the pod forward.
	PhaseCruising                      // Maximum velocity held, coasting.
	PhaseNominalBraking                // Planned stop at the end of the run.
	PhaseRunComplete                   // Stopped after a nominal run.
	PhaseEmergencyBraking              // Fail-safe stop in progress.
	PhaseFailureStopped                // Stopped after a failure.
	PhaseExiting                       // Shutting down.
)

// AllPhases lists every phase in progression order.
var AllPhases = []Phase{
	PhaseIdle,
	PhaseCalibrating,
	PhaseReady,
	PhaseAccelerating,
	PhaseCruising,
	PhaseNominalBraking,
	PhaseRunComplete,
	PhaseEmergencyBraking,
	PhaseFailureStopped,
	PhaseExiting,
}

var phaseNames = map[Phase]string{
	PhaseIdle:             "idle",
	PhaseCalibrating:      "calibrating",
	PhaseReady:            "ready",
	PhaseAccelerating:     "accelerating",
	PhaseCruising:         "cruising",
	PhaseNominalBraking:   "nominal_braking",
	PhaseRunComplete:      "run_complete",
	PhaseEmergencyBraking: "emergency_braking",
	PhaseFailureStopped:   "failure_stopped",
	PhaseExiting:          "exiting",
}

// String returns the snake_case name of the phase.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// ParsePhase converts a snake_case phase name back into a Phase.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// IsTerminal reports whether the phase has no outgoing transitions.
func (p Phase) IsTerminal() bool {
	return p == PhaseRunComplete || p == PhaseFailureStopped || p == PhaseExiting
}

// IsFailSafe reports whether the phase is one of the fail-safe phases.
func (p Phase) IsFailSafe() bool {
	return p == PhaseEmergencyBraking || p == PhaseFailureStopped
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
