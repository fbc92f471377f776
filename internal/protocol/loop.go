package protocol

import (
	"context"
	"runtime"
	"time"

	"github.com/roach88/podctl/internal/data"
)

// CycleFunc is one bounded unit of work: read shared state, act, publish
// own state. It must not block on another loop.
type CycleFunc func(ctx context.Context)

// Loop runs fn once per period until the run flag is cleared or ctx ends.
//
// After each cycle the loop yields its turn until the next tick instead of
// spinning; a period <= 0 yields the processor once per cycle. The flag is
// only checked between cycles, so a cycle is never interrupted.
//
// Returns nil when the flag is cleared and ctx.Err() when ctx ends.
func Loop(ctx context.Context, flag *data.RunFlag, period time.Duration, fn CycleFunc) error {
	if period <= 0 {
		for flag.Running() {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ctx)
			runtime.Gosched()
		}
		return nil
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for flag.Running() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-flag.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
