// Package data implements the shared data store of the pod controller.
//
// The store is the only shared mutable resource in the process. It holds one
// slot per domain (state machine, navigation, sensors, propulsion, brakes,
// telemetry) and has no business logic.
//
// # Copy-in / copy-out
//
// Every read returns a full copy of the domain snapshot and every write
// replaces the stored value with a copy of the caller's snapshot. Snapshots
// hold fixed-size arrays only, so a copy never aliases the stored value.
// Each slot has its own lock and the critical section is exactly one struct
// copy: readers observe either the complete old or the complete new
// snapshot, never a mixture of fields.
//
// # Single writer per domain
//
// Writes are only possible through a Writer, and a domain can be claimed
// exactly once for the lifetime of the store:
//
//	nav, err := store.ClaimNavigation("navigation")
//	if err != nil {
//	    return err // ErrAlreadyClaimed: another loop owns the domain
//	}
//	nav.Set(pod.NavigationData{ModuleStatus: pod.StatusInit})
//
// A second writer for the same domain is therefore not representable at
// runtime, which rules out write-write races by construction.
//
// # Publish ordering
//
// Every Set is stamped from a store-wide monotonic logical clock. The
// sequence numbers order publishes across domains and let readers detect
// that a domain changed without comparing snapshots.
package data
