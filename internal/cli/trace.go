package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/podctl/internal/recorder"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Statuses bool
}

// TraceResult is the JSON payload of trace.
type TraceResult struct {
	Run           recorder.Run                  `json:"run"`
	Transitions   []recorder.TransitionRecord   `json:"transitions"`
	StatusChanges []recorder.StatusChangeRecord `json:"status_changes,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded transitions of a run",
		Long: `Show the transitions of a recorded run, in order.

With --statuses the module status changes seen by the engine are listed
as well.

Examples:
  podctl trace --db runs.db
  podctl trace --db runs.db --run 0192f0c4-... --statuses`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to show (default: latest)")
	cmd.Flags().BoolVar(&opts.Statuses, "statuses", false, "include module status changes")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(ctx context.Context, w io.Writer, opts *TraceOptions) error {
	st, err := openDatabase(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var run recorder.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if err != nil {
		if errors.Is(err, recorder.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "no such run", err)
		}
		return WrapExitError(ExitFailure, "failed to read run", err)
	}

	result := TraceResult{Run: run}
	if result.Transitions, err = st.ReadTransitions(ctx, run.ID); err != nil {
		return WrapExitError(ExitFailure, "failed to read transitions", err)
	}
	if opts.Statuses {
		if result.StatusChanges, err = st.ReadStatusChanges(ctx, run.ID); err != nil {
			return WrapExitError(ExitFailure, "failed to read status changes", err)
		}
	}

	if opts.Format == "json" {
		return okJSON(w, result)
	}
	writeTraceText(w, result)
	return nil
}

func writeTraceText(w io.Writer, r TraceResult) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.Run.ID, r.Run.Profile)
	fmt.Fprintf(w, "  started: %s\n", r.Run.StartedAt.Format("2006-01-02 15:04:05.000"))
	if r.Run.Ended {
		printer.Fprintf(w, "  ended:   %s in %s after %d cycles\n",
			r.Run.EndedAt.Format("2006-01-02 15:04:05.000"), r.Run.FinalPhase, r.Run.Cycles)
	} else {
		fmt.Fprintln(w, "  ended:   no (run did not finish)")
	}

	fmt.Fprintf(w, "\nTransitions (%d):\n", len(r.Transitions))
	for _, tr := range r.Transitions {
		fmt.Fprintf(w, "  [%d] cycle %d: %s -> %s (%s)", tr.Ordinal, tr.Cycle, tr.From, tr.To, tr.Reason)
		if !tr.FailedModules.Empty() {
			fmt.Fprintf(w, " failed=%s", tr.FailedModules)
		}
		fmt.Fprintln(w)
	}

	if r.StatusChanges != nil {
		fmt.Fprintf(w, "\nStatus changes (%d):\n", len(r.StatusChanges))
		for _, c := range r.StatusChanges {
			fmt.Fprintf(w, "  [%d] cycle %d: %s %s -> %s\n", c.Ordinal, c.Cycle, c.Module, c.From, c.To)
		}
	}
}
