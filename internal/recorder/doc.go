// Package recorder provides a SQLite-backed flight recorder for pod runs.
//
// The recorder keeps an append-only log per run:
//   - Runs: one row per run, closed with the final phase and cycle count
//   - Transitions: every published phase change, in order
//   - Status changes: every module status change the engine observed
//
// # Critical Patterns
//
// Non-blocking capture:
//   - The engine hands events to an unbounded FIFO and returns immediately
//   - The recorder's own Run loop is the only SQLite writer
//
// Ordering:
//   - Rows are ordered by ordinal, assigned in arrival order
//   - The store publish seq of each transition is kept for verification
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package recorder
