// Package pod provides the shared vocabulary of the pod controller.
//
// This package contains type definitions only. Every other internal package
// imports pod; pod imports nothing internal. Operating phases, module
// statuses, module identities and the per-domain snapshots published into
// the shared data store all live here.
//
// Key design constraints:
//   - Snapshots are plain values holding fixed-size arrays only, so that a
//     struct copy is a complete, independent snapshot (no shared backing
//     arrays between readers and the writer)
//   - The zero value of every snapshot is its documented default
//     (PhaseIdle, StatusStart)
//   - All JSON tags use snake_case
package pod
