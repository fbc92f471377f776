package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/podctl/internal/recorder"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ReplayResult is the JSON payload of replay.
type ReplayResult struct {
	Runs    []recorder.RunState `json:"runs"`
	Valid   int                 `json:"valid"`
	Invalid int                 `json:"invalid"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify recorded runs against the transition graph",
		Long: `Replay the transition log of recorded runs from Idle.

Every transition must chain from the previous one, be an allowed edge of
the transition graph and carry an increasing publish sequence. A finished
run must end in the phase its log ends in.

Exit codes:
  0 - Every replayed run is consistent
  1 - At least one run has issues
  2 - Command error (database not found, unknown run)

Examples:
  podctl replay --db runs.db
  podctl replay --db runs.db --run 0192f0c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay only this run (default: all runs)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// openDatabase opens an existing run database for reading.
func openDatabase(path string) (*recorder.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := recorder.OpenReadOnly(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runReplay(ctx context.Context, w io.Writer, opts *ReplayOptions) error {
	st, err := openDatabase(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var ids []string
	if opts.RunID != "" {
		ids = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
	}

	result := ReplayResult{Runs: []recorder.RunState{}}
	for _, id := range ids {
		state, err := st.VerifyRun(ctx, id)
		if err != nil {
			if errors.Is(err, recorder.ErrRunNotFound) {
				return WrapExitError(ExitCommandError, "unknown run", err)
			}
			return WrapExitError(ExitFailure, "replay failed", err)
		}
		result.Runs = append(result.Runs, state)
		if state.Valid() {
			result.Valid++
		} else {
			result.Invalid++
		}
	}

	if opts.Format == "json" {
		if result.Invalid > 0 {
			msg := fmt.Sprintf("%d of %d runs have issues", result.Invalid, len(result.Runs))
			if err := errorJSON(w, CodeRecordingInvalid, msg, result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return okJSON(w, result)
	}

	writeReplayText(w, result)
	if result.Invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d runs have issues", result.Invalid, len(result.Runs)))
	}
	return nil
}

func writeReplayText(w io.Writer, result ReplayResult) {
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	for _, state := range result.Runs {
		mark := "✓"
		if !state.Valid() {
			mark = "✗"
		}
		phases := make([]string, len(state.Phases))
		for i, p := range state.Phases {
			phases[i] = p.String()
		}
		status := "ended"
		if !state.Run.Ended {
			status = "not ended"
		}
		fmt.Fprintf(w, "%s %s (%s, %s): %s\n", mark, state.Run.ID, state.Run.Profile, status, strings.Join(phases, " -> "))
		for _, issue := range state.Issues {
			fmt.Fprintf(w, "    [%d] %s: %s\n", issue.Ordinal, issue.Kind, issue.Message)
		}
	}
	fmt.Fprintf(w, "\n%d valid, %d invalid\n", result.Valid, result.Invalid)
}
