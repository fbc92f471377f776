package engine

import (
	"github.com/roach88/podctl/internal/pod"
)

// Transition reasons published in StateMachineData.Reason.
const (
	ReasonCalibrateCommand    = "calibrate_command"
	ReasonCalibrationComplete = "calibration_complete"
	ReasonLaunchCommand       = "launch_command"
	ReasonCruiseVelocity      = "cruise_velocity_reached"
	ReasonBrakingPoint        = "braking_point_reached"
	ReasonBrakesSettled       = "brakes_settled"
	ReasonPodStopped          = "pod_stopped"
	ReasonShutdownCommand     = "shutdown_command"
	ReasonEmergencyStop       = "emergency_stop_command"
)

// failureReason names the latched modules, e.g. "critical_failure:propulsion".
func failureReason(failed pod.ModuleSet) string {
	return "critical_failure:" + failed.String()
}

// timeoutReason names the phase whose guard fired, e.g. "timeout:nominal_braking".
func timeoutReason(p pod.Phase) string {
	return "timeout:" + p.String()
}

// phaseBehavior is one phase's entry in the phase table.
//
// exit may adjust the snapshot about to be published. enter runs after the
// new phase is visible in the store. check returns the nominal transition,
// if any; the override and the timeout guard are not its concern.
type phaseBehavior struct {
	enter func(t Transition)
	exit  func(next *pod.StateMachineData)
	check func(in cycleInput) (decision, bool)
}

func (e *Engine) phaseTable() map[pod.Phase]phaseBehavior {
	return map[pod.Phase]phaseBehavior{
		pod.PhaseIdle:             {check: e.checkIdle},
		pod.PhaseCalibrating:      {check: e.checkCalibrating, exit: exitCalibrating},
		pod.PhaseReady:            {check: e.checkReady},
		pod.PhaseAccelerating:     {check: e.checkAccelerating},
		pod.PhaseCruising:         {check: e.checkCruising},
		pod.PhaseNominalBraking:   {check: e.checkNominalBraking},
		pod.PhaseRunComplete:      {enter: e.enterStopped},
		pod.PhaseEmergencyBraking: {check: e.checkEmergencyBraking, enter: e.enterFailSafe},
		pod.PhaseFailureStopped:   {enter: e.enterFailSafe},
		pod.PhaseExiting:          {enter: e.enterExiting},
	}
}

func (e *Engine) checkIdle(in cycleInput) (decision, bool) {
	if in.telemetry.ShutdownCommand {
		return decision{to: pod.PhaseExiting, reason: ReasonShutdownCommand}, true
	}
	if in.telemetry.CalibrateCommand && in.statuses.AllAtLeastInit(e.policy.Subscribed) {
		return decision{to: pod.PhaseCalibrating, reason: ReasonCalibrateCommand}, true
	}
	return decision{}, false
}

func (e *Engine) checkCalibrating(in cycleInput) (decision, bool) {
	if in.statuses.AllReady(e.policy.CalibratingReady) {
		return decision{to: pod.PhaseReady, reason: ReasonCalibrationComplete}, true
	}
	return decision{}, false
}

// exitCalibrating marks calibration done only when setup actually finished.
// A fail-safe exit leaves the flag clear.
func exitCalibrating(next *pod.StateMachineData) {
	next.CalibrationComplete = next.CurrentPhase == pod.PhaseReady
}

func (e *Engine) checkReady(in cycleInput) (decision, bool) {
	if in.telemetry.ShutdownCommand {
		return decision{to: pod.PhaseExiting, reason: ReasonShutdownCommand}, true
	}
	if in.telemetry.LaunchCommand && in.statuses.AllReady(e.policy.LaunchReady) {
		return decision{to: pod.PhaseAccelerating, reason: ReasonLaunchCommand}, true
	}
	return decision{}, false
}

func (e *Engine) checkAccelerating(in cycleInput) (decision, bool) {
	if e.policy.brakingPointReached(in.nav) {
		return decision{to: pod.PhaseNominalBraking, reason: ReasonBrakingPoint}, true
	}
	if in.nav.Velocity >= e.policy.CruiseVelocity {
		return decision{to: pod.PhaseCruising, reason: ReasonCruiseVelocity}, true
	}
	return decision{}, false
}

func (e *Engine) checkCruising(in cycleInput) (decision, bool) {
	if e.policy.brakingPointReached(in.nav) {
		return decision{to: pod.PhaseNominalBraking, reason: ReasonBrakingPoint}, true
	}
	return decision{}, false
}

func (e *Engine) checkNominalBraking(in cycleInput) (decision, bool) {
	if e.brakesSettled(in.statuses.Of(pod.ModuleBrakes)) {
		return decision{to: pod.PhaseRunComplete, reason: ReasonBrakesSettled}, true
	}
	return decision{}, false
}

func (e *Engine) checkEmergencyBraking(in cycleInput) (decision, bool) {
	if e.brakesSettled(in.statuses.Of(pod.ModuleBrakes)) {
		return decision{to: pod.PhaseFailureStopped, reason: ReasonBrakesSettled}, true
	}
	if e.navigationTrusted(in) && in.nav.Velocity <= e.policy.StoppedVelocity {
		return decision{to: pod.PhaseFailureStopped, reason: ReasonPodStopped}, true
	}
	return decision{}, false
}

// brakesSettled detects the brakes Running → Ready edge within the current
// phase. A brakes module that was never seen Running has not settled.
func (e *Engine) brakesSettled(s pod.ModuleStatus) bool {
	switch s {
	case pod.StatusRunning:
		e.brakesRunning = true
	case pod.StatusReady:
		return e.brakesRunning
	}
	return false
}

// navigationTrusted reports whether the navigation readings can be used to
// decide the pod is stopped.
func (e *Engine) navigationTrusted(in cycleInput) bool {
	if !e.policy.Subscribed.Has(pod.ModuleNavigation) || e.failed.Has(pod.ModuleNavigation) {
		return false
	}
	s := in.statuses.Of(pod.ModuleNavigation)
	return s == pod.StatusReady || s == pod.StatusRunning
}

func (e *Engine) enterStopped(t Transition) {
	e.logger.Info("run complete", "cycle", t.Cycle)
}

func (e *Engine) enterFailSafe(t Transition) {
	e.logger.Error("fail-safe phase entered",
		"phase", t.To.String(),
		"from", t.From.String(),
		"reason", t.Reason,
		"failed", t.FailedModules.String(),
	)
}

// enterExiting clears the run flag. Exiting is published before the flag
// clears.
func (e *Engine) enterExiting(t Transition) {
	e.logger.Info("exiting", "reason", t.Reason)
	e.flag.Stop()
}
