package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/podctl/internal/pod"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_ExpectMismatchIsReported(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: "calibrate without init statuses stays idle"
steps:
  - set:
      telemetry: { calibrate: true }
    expect: calibrating
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "steps[0]: expected phase calibrating, got idle", result.Errors[0])
	assert.Equal(t, pod.PhaseIdle, result.FinalPhase)
	assert.Empty(t, result.Trace)
	assert.Equal(t, []pod.Phase{pod.PhaseIdle}, result.Phases())
}

func TestRun_ShutdownFromIdle(t *testing.T) {
	s := mustParse(t, `
name: shutdown_idle
description: "shutdown before calibration exits"
steps:
  - set:
      telemetry: { shutdown: true }
    cycles: 3
assertions:
  - type: phase_sequence
    phases: [idle, exiting]
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.True(t, result.Stopped)
	assert.Equal(t, int64(3), result.Cycles)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, TraceEvent{Cycle: 1, From: pod.PhaseIdle, To: pod.PhaseExiting, Reason: "shutdown_command"}, result.Trace[0])
}

func TestRun_RevertedFailureStaysLatched(t *testing.T) {
	s := mustParse(t, `
name: revert
description: "a module that recovers from critical failure is still failed"
steps:
  - all: init
  - set:
      sensors: { status: critical_failure }
    expect: emergency_braking
  - set:
      sensors: { status: ready }
    cycles: 5
assertions:
  - type: failed_modules
    modules: [sensors]
  - type: never_phase
    phase: calibrating
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "critical_failure:sensors", result.Trace[0].Reason)
}

func TestRun_ProfileOverrides(t *testing.T) {
	s := mustParse(t, `
name: short_timeout
description: "a custom timeout escalates straight to failure_stopped"
profile: |
  subscribed: ["navigation", "sensors", "brakes"]
  required_ready: launch: ["navigation", "sensors", "brakes"]
  timeouts: calibrating: { after: "2s", escalate_to: "failure_stopped" }
steps:
  - all: init
    set:
      telemetry: { calibrate: true }
    expect: calibrating
  - advance: 2s
    expect: calibrating
  - advance: 1ms
    expect: failure_stopped
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "timeout:calibrating", result.Trace[len(result.Trace)-1].Reason)
}

func TestRun_BadProfile(t *testing.T) {
	s := mustParse(t, `
name: bad_profile
description: "profile that does not unify"
profile: |
  run_length: "far"
steps:
  - expect: idle
`)
	_, err := Run(s)
	assert.ErrorContains(t, err, "failed to resolve profile")
}

func TestRun_IsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/nominal_braking_timeout.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, FormatTrace(s.Name, first), FormatTrace(s.Name, second))
}
