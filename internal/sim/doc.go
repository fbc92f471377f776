// Package sim provides bench stand-ins for the pod subsystems.
//
// Each simulator is the sole writer of its module domain, publishes through
// a protocol.Publisher, and follows the published phase the way the real
// subsystem would. The physics is deliberately trivial: constant
// accelerations integrated with a fixed time step.
//
// A Bench runs one loop per simulated module under the cooperative
// scheduling contract, plus an optional Autopilot that issues operator
// commands on its own.
package sim
