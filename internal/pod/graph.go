package pod

// nominalEdges lists the progression edges of the state machine. Fail-safe
// edges into EmergencyBraking exist from every phase that is neither
// terminal nor already fail-safe and are not listed here.
var nominalEdges = map[Phase][]Phase{
	PhaseIdle:             {PhaseCalibrating, PhaseExiting},
	PhaseCalibrating:      {PhaseReady},
	PhaseReady:            {PhaseAccelerating, PhaseExiting},
	PhaseAccelerating:     {PhaseCruising, PhaseNominalBraking},
	PhaseCruising:         {PhaseNominalBraking},
	PhaseNominalBraking:   {PhaseRunComplete},
	PhaseEmergencyBraking: {PhaseFailureStopped},
}

// CanTransition reports whether the state machine may move from one phase
// to another in a single cycle.
//
// A timeout guard may escalate to FailureStopped from any non-terminal
// phase, so that edge is accepted as well.
func CanTransition(from, to Phase) bool {
	if from.IsTerminal() || from == to {
		return false
	}
	if to == PhaseEmergencyBraking {
		return !from.IsFailSafe()
	}
	if to == PhaseFailureStopped {
		return true
	}
	for _, next := range nominalEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Successors returns every phase reachable from p in one cycle, in
// AllPhases order.
func Successors(p Phase) []Phase {
	var out []Phase
	for _, next := range AllPhases {
		if CanTransition(p, next) {
			out = append(out, next)
		}
	}
	return out
}
