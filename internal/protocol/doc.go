// Package protocol implements the module status protocol shared by the
// subsystem loops and the state machine engine.
//
// Every subsystem publishes its own ModuleStatus inside its domain snapshot:
//
//	Start            loop launched, not yet initialized
//	Init             performing one-time setup (e.g. sensor calibration)
//	Ready            setup complete, idle, awaiting the next phase
//	Running          actively performing its phase-specific duty
//	CriticalFailure  unrecoverable fault; sticky for the run
//
// The engine never infers status from domain readings, only from this
// field. The coupling between the engine and a collaborator is one enum
// per domain.
//
// The package provides three pieces:
//   - Publisher: the write-side adapter a subsystem publishes through; it
//     holds the domain's Writer and enforces that CriticalFailure is sticky
//   - Observe: the read side, collecting subscribed module statuses into a
//     Statuses value
//   - Loop: the cooperative scheduling contract every participant follows
package protocol
