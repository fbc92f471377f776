package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
)

// timeLayout is used for every stored timestamp. Timestamps are for
// operators only; ordering always uses ordinal and seq.
const timeLayout = time.RFC3339Nano

// Run is one recorded run.
type Run struct {
	ID         string        `json:"id"`
	Profile    string        `json:"profile"`
	Official   bool          `json:"official"`
	Subscribed pod.ModuleSet `json:"subscribed"`
	StartedAt  time.Time     `json:"started_at"`

	// Ended is false for a run that never called EndRun (crash or kill).
	Ended      bool      `json:"ended"`
	EndedAt    time.Time `json:"ended_at,omitempty"`
	FinalPhase pod.Phase `json:"final_phase"`
	Cycles     int64     `json:"cycles"`
}

// BeginRun inserts the run row. Uses ON CONFLICT(id) DO NOTHING for
// idempotency - beginning the same run twice is silently ignored.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, profile, official, subscribed, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Profile,
		boolToInt(run.Official),
		run.Subscribed.String(),
		run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// EndRun records how a run finished.
func (s *Store) EndRun(ctx context.Context, runID string, endedAt time.Time, final pod.Phase, cycles int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET ended_at = ?, final_phase = ?, cycles = ?
		WHERE id = ?
	`,
		endedAt.UTC().Format(timeLayout),
		final.String(),
		cycles,
		runID,
	)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end run: %w", sql.ErrNoRows)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteTransition appends a transition to a run. Duplicate ordinals are
// silently ignored.
func (s *Store) WriteTransition(ctx context.Context, runID string, ordinal int, t engine.Transition) error {
	return insertTransition(ctx, s.db, runID, ordinal, t)
}

// WriteStatusChange appends a module status change to a run. Duplicate
// ordinals are silently ignored.
func (s *Store) WriteStatusChange(ctx context.Context, runID string, ordinal int, c engine.StatusChange) error {
	return insertStatusChange(ctx, s.db, runID, ordinal, c)
}

// writeBatch inserts queued events in one transaction. Either every row
// is written or none is.
func (s *Store) writeBatch(ctx context.Context, runID string, batch []numbered) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	for _, n := range batch {
		if err := n.insert(ctx, tx, runID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// numbered is a queued event with its ordinal in the run.
type numbered struct {
	ordinal int
	event
}

func (n numbered) insert(ctx context.Context, ex execer, runID string) error {
	if n.transition != nil {
		return insertTransition(ctx, ex, runID, n.ordinal, *n.transition)
	}
	return insertStatusChange(ctx, ex, runID, n.ordinal, *n.change)
}

func insertTransition(ctx context.Context, ex execer, runID string, ordinal int, t engine.Transition) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO transitions
		(run_id, ordinal, cycle, seq, from_phase, to_phase, reason, failed_modules, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		ordinal,
		t.Cycle,
		t.Seq,
		t.From.String(),
		t.To.String(),
		t.Reason,
		t.FailedModules.String(),
		t.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("write transition %d: %w", ordinal, err)
	}
	return nil
}

func insertStatusChange(ctx context.Context, ex execer, runID string, ordinal int, c engine.StatusChange) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO status_changes
		(run_id, ordinal, cycle, module, from_status, to_status, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		ordinal,
		c.Cycle,
		c.Module.String(),
		c.From.String(),
		c.To.String(),
		c.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("write status change %d: %w", ordinal, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
