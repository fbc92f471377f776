// Package harness runs scenario tests against the state machine engine.
//
// A scenario drives a real engine on a fresh store. Each step forces module
// snapshots through direct domain writers, optionally advances the fake
// wall clock, then runs a number of engine cycles. The resulting
// transitions form the trace that assertions and golden files check.
//
// # Scenario Format
//
//	name: propulsion_failure
//	description: "A propulsion failure while accelerating forces emergency braking"
//	profile: |
//	  official_run: true
//	steps:
//	  - all: init
//	    set:
//	      telemetry: { calibrate: true }
//	    expect: calibrating
//	  - set:
//	      propulsion: { status: critical_failure }
//	    cycles: 1
//	    expect: emergency_braking
//	assertions:
//	  - type: phase_sequence
//	    phases: [idle, calibrating, ready, accelerating, emergency_braking]
//	  - type: never_phase
//	    phase: run_complete
//
// A step applies, in order: all (every module status), set (per-module
// fields), advance (a duration added to the clock), cycles (engine cycles,
// default 1) and expect (the phase after the cycles).
//
// # Assertion Types
//
//   - final_phase: the phase published at the end of the scenario
//   - phase_sequence: the exact list of phases visited, starting at idle
//   - transition_count: the number of transitions
//   - never_phase: a phase that is never entered
//   - failed_modules: the modules latched as failed at the end
//
// Every trace is also checked for legality: each transition must be an
// edge of the phase graph, follow on from the previous one, and carry a
// strictly increasing cycle.
//
// # Deterministic Testing
//
// The engine clock is a testutil.FakeClock starting at testutil.Epoch and
// moved only by advance, so traces are identical across runs and can be
// compared against golden files in testdata/golden.
package harness
