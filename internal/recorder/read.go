package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// TransitionRecord is a stored transition with its position in the run.
type TransitionRecord struct {
	Ordinal int `json:"ordinal"`
	engine.Transition
}

// StatusChangeRecord is a stored status change with its position in the run.
type StatusChangeRecord struct {
	Ordinal int `json:"ordinal"`
	engine.StatusChange
}

// ListRuns returns every run, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile, official, subscribed, started_at, ended_at, final_phase, cycles
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run. Returns ErrRunNotFound if it does not exist.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile, official, subscribed, started_at, ended_at, final_phase, cycles
		FROM runs
		WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// LatestRun returns the most recently started run.
// Returns ErrRunNotFound if the database holds no runs.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile, official, subscribed, started_at, ended_at, final_phase, cycles
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// ReadTransitions returns the transitions of a run ordered by ordinal.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadTransitions(ctx context.Context, runID string) ([]TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, cycle, seq, from_phase, to_phase, reason, failed_modules, at
		FROM transitions
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []TransitionRecord{}
	for rows.Next() {
		var (
			rec              TransitionRecord
			from, to, failed string
			at               string
		)
		if err := rows.Scan(&rec.Ordinal, &rec.Cycle, &rec.Seq, &from, &to, &rec.Reason, &failed, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if rec.From, err = pod.ParsePhase(from); err != nil {
			return nil, fmt.Errorf("transition %d: %w", rec.Ordinal, err)
		}
		if rec.To, err = pod.ParsePhase(to); err != nil {
			return nil, fmt.Errorf("transition %d: %w", rec.Ordinal, err)
		}
		if rec.FailedModules, err = parseModuleSet(failed); err != nil {
			return nil, fmt.Errorf("transition %d: %w", rec.Ordinal, err)
		}
		if rec.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("transition %d: %w", rec.Ordinal, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// ReadStatusChanges returns the status changes of a run ordered by
// ordinal. Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadStatusChanges(ctx context.Context, runID string) ([]StatusChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, cycle, module, from_status, to_status, at
		FROM status_changes
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query status changes: %w", err)
	}
	defer rows.Close()

	out := []StatusChangeRecord{}
	for rows.Next() {
		var (
			rec              StatusChangeRecord
			module, from, to string
			at               string
		)
		if err := rows.Scan(&rec.Ordinal, &rec.Cycle, &module, &from, &to, &at); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		if rec.Module, err = pod.ParseModule(module); err != nil {
			return nil, fmt.Errorf("status change %d: %w", rec.Ordinal, err)
		}
		if rec.From, err = pod.ParseModuleStatus(from); err != nil {
			return nil, fmt.Errorf("status change %d: %w", rec.Ordinal, err)
		}
		if rec.To, err = pod.ParseModuleStatus(to); err != nil {
			return nil, fmt.Errorf("status change %d: %w", rec.Ordinal, err)
		}
		if rec.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("status change %d: %w", rec.Ordinal, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status changes: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run                 Run
		official            int
		subscribed, started string
		ended, final        sql.NullString
		cycles              sql.NullInt64
	)
	if err := row.Scan(&run.ID, &run.Profile, &official, &subscribed, &started, &ended, &final, &cycles); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	run.Official = official != 0
	if run.Subscribed, err = parseModuleSet(subscribed); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if ended.Valid {
		run.Ended = true
		if run.EndedAt, err = time.Parse(timeLayout, ended.String); err != nil {
			return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
		}
	}
	if final.Valid {
		if run.FinalPhase, err = pod.ParsePhase(final.String); err != nil {
			return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
		}
	}
	run.Cycles = cycles.Int64
	return run, nil
}

// parseModuleSet parses the ModuleSet.String encoding.
func parseModuleSet(s string) (pod.ModuleSet, error) {
	if s == "" || s == "none" {
		return 0, nil
	}
	return pod.ParseModuleSet(strings.Split(s, ","))
}
