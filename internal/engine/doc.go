// Package engine implements the pod-wide state machine.
//
// The engine is the single writer of the state machine domain. Once per
// cycle it reads the shared store, decides whether the operating phase must
// change, and if so publishes the new phase back into the store. Subsystem
// loops read the published phase on their own next cycle.
//
// ARCHITECTURE:
//
// Single-Writer Cycle:
// Step runs from exactly one goroutine. A cycle is:
//  1. Read the current StateMachineData
//  2. Read the status of every subscribed module (latching failures)
//  3. Evaluate the transition policy of the current phase
//  4. On a transition: exit(old), publish, enter(new), notify observers
//  5. Otherwise: no side effects
//
// Policy Order:
// The fail-safe override is evaluated before any nominal rule and is the
// same in every phase: a latched CriticalFailure or an emergency stop
// command sends every non-fail-safe phase to EmergencyBraking. Nominal
// rules run next, then the optional per-phase timeout guard.
//
// Phase Table:
// Each phase owns an enter, exit and check function held in a table keyed
// by phase. Phase-local state (the brakes edge detector) is reset on every
// enter.
//
// CRITICAL PATTERNS:
//
// Wall time is read through the Clock interface and only feeds the timeout
// guard. Every other transition is a function of the phase, the module
// statuses, the navigation readings and the operator commands.
//
// Step never returns an error. Every path ends in a defined phase.
package engine
