package testutil

import "fmt"

// FixedRunIDGenerator returns run IDs from a fixed prefix and a counter.
//
// This enables deterministic recorder output and golden comparison: the
// same scenario with a fresh generator produces identical run IDs.
//
// Not safe for concurrent use; a run ID is generated once per run.
type FixedRunIDGenerator struct {
	prefix string
	n      int
}

// NewFixedRunIDGenerator creates a generator. If prefix is empty,
// "test-run" is used.
func NewFixedRunIDGenerator(prefix string) *FixedRunIDGenerator {
	if prefix == "" {
		prefix = "test-run"
	}
	return &FixedRunIDGenerator{prefix: prefix}
}

// Generate returns "<prefix>-1", "<prefix>-2", ...
func (g *FixedRunIDGenerator) Generate() string {
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
