package engine

import (
	"fmt"
	"time"

	"github.com/roach88/podctl/internal/pod"
)

// Default policy values for a bench run on the test track.
const (
	DefaultCyclePeriod     = 10 * time.Millisecond
	DefaultRunLength       = 1250.0
	DefaultBrakingMargin   = 20.0
	DefaultCruiseVelocity  = 90.0
	DefaultStoppedVelocity = 0.05
)

// Timeout is the guard for one phase: held longer than After without a
// transition, the engine escalates to EscalateTo.
type Timeout struct {
	After      time.Duration
	EscalateTo pod.Phase
}

// Policy is everything the engine needs to decide transitions.
// It is read once when the engine is built and never changes for the run.
type Policy struct {
	// Subscribed modules take part in readiness and failure checks.
	Subscribed pod.ModuleSet

	// CalibratingReady must all be Ready to leave Calibrating.
	CalibratingReady pod.ModuleSet
	// LaunchReady must all be Ready to accept a launch command.
	LaunchReady pod.ModuleSet

	// RunLength is the distance to the end of the usable track (m).
	RunLength float64
	// BrakingMargin is added to the braking distance when deciding
	// whether to start braking (m).
	BrakingMargin float64
	// CruiseVelocity ends acceleration (m/s).
	CruiseVelocity float64
	// StoppedVelocity is the speed at or below which the pod counts as
	// stopped (m/s).
	StoppedVelocity float64

	// CyclePeriod is the engine's yield interval. Zero yields the
	// processor once per cycle.
	CyclePeriod time.Duration

	// Timeouts holds the per-phase guards. Phases without an entry never
	// time out.
	Timeouts map[pod.Phase]Timeout
}

// DefaultTimeouts returns the guards used when a profile sets none.
func DefaultTimeouts() map[pod.Phase]Timeout {
	return map[pod.Phase]Timeout{
		pod.PhaseNominalBraking:   {After: 30 * time.Second, EscalateTo: pod.PhaseEmergencyBraking},
		pod.PhaseEmergencyBraking: {After: 60 * time.Second, EscalateTo: pod.PhaseFailureStopped},
	}
}

// DefaultPolicy returns the policy of an official run with every module
// subscribed.
func DefaultPolicy() Policy {
	return Policy{
		Subscribed:       pod.AllModuleSet,
		CalibratingReady: pod.NewModuleSet(pod.ModuleNavigation, pod.ModuleSensors),
		LaunchReady:      pod.AllModuleSet,
		RunLength:        DefaultRunLength,
		BrakingMargin:    DefaultBrakingMargin,
		CruiseVelocity:   DefaultCruiseVelocity,
		StoppedVelocity:  DefaultStoppedVelocity,
		CyclePeriod:      DefaultCyclePeriod,
		Timeouts:         DefaultTimeouts(),
	}
}

// Validate reports the first reason the policy cannot be run.
func (p Policy) Validate() error {
	if !p.CalibratingReady.SubsetOf(p.Subscribed) {
		return &PolicyError{
			Code:    ErrCodeUnsubscribedRequirement,
			Message: fmt.Sprintf("calibrating requires unsubscribed modules %s", p.CalibratingReady.Subtract(p.Subscribed)),
			Phase:   pod.PhaseCalibrating.String(),
		}
	}
	if !p.LaunchReady.SubsetOf(p.Subscribed) {
		return &PolicyError{
			Code:    ErrCodeUnsubscribedRequirement,
			Message: fmt.Sprintf("launch requires unsubscribed modules %s", p.LaunchReady.Subtract(p.Subscribed)),
			Phase:   pod.PhaseReady.String(),
		}
	}

	if p.RunLength <= 0 {
		return &PolicyError{Code: ErrCodeInvalidThreshold, Message: "run length must be positive"}
	}
	if p.CruiseVelocity <= 0 {
		return &PolicyError{Code: ErrCodeInvalidThreshold, Message: "cruise velocity must be positive"}
	}
	if p.BrakingMargin < 0 || p.StoppedVelocity < 0 {
		return &PolicyError{Code: ErrCodeInvalidThreshold, Message: "braking margin and stopped velocity must not be negative"}
	}
	if p.CyclePeriod < 0 {
		return &PolicyError{Code: ErrCodeInvalidThreshold, Message: "cycle period must not be negative"}
	}

	for _, phase := range pod.AllPhases {
		t, ok := p.Timeouts[phase]
		if !ok {
			continue
		}
		switch {
		case t.After <= 0:
			return &PolicyError{Code: ErrCodeInvalidTimeout, Message: "timeout must be positive", Phase: phase.String()}
		case phase.IsTerminal():
			return &PolicyError{Code: ErrCodeInvalidTimeout, Message: "terminal phases cannot time out", Phase: phase.String()}
		case !t.EscalateTo.IsFailSafe():
			return &PolicyError{
				Code:    ErrCodeInvalidTimeout,
				Message: fmt.Sprintf("escalation target %s is not a fail-safe phase", t.EscalateTo),
				Phase:   phase.String(),
			}
		case !pod.CanTransition(phase, t.EscalateTo):
			return &PolicyError{
				Code:    ErrCodeInvalidTimeout,
				Message: fmt.Sprintf("cannot escalate to %s", t.EscalateTo),
				Phase:   phase.String(),
			}
		}
	}
	return nil
}

// brakingPointReached reports whether the pod must start braking to stop
// before the end of the track.
func (p Policy) brakingPointReached(nav pod.NavigationData) bool {
	return nav.Displacement+nav.BrakingDistance+p.BrakingMargin >= p.RunLength
}
