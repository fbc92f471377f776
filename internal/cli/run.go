package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/podctl/internal/config"
	"github.com/roach88/podctl/internal/data"
	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
	"github.com/roach88/podctl/internal/recorder"
	"github.com/roach88/podctl/internal/sim"
	"github.com/roach88/podctl/internal/trigger"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Profile    string
	Database   string
	TriggerDir string
	Autopilot  bool
	Faults     []string
	Timeout    time.Duration

	// RunIDGenerator overrides the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator recorder.RunIDGenerator
}

// RunSummary describes how a run ended.
type RunSummary struct {
	RunID        string        `json:"run_id,omitempty"`
	Profile      string        `json:"profile"`
	Official     bool          `json:"official"`
	FinalPhase   pod.Phase     `json:"final_phase"`
	Reason       string        `json:"reason,omitempty"`
	Phases       []pod.Phase   `json:"phases"`
	Cycles       int64         `json:"cycles"`
	Failed       pod.ModuleSet `json:"failed_modules"`
	Displacement float64       `json:"displacement"`
	Velocity     float64       `json:"velocity"`
	Elapsed      string        `json:"elapsed"`

	// Interrupted is true when the run was stopped by a signal or
	// --timeout instead of through the run flag.
	Interrupted bool `json:"interrupted"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the state machine against the bench simulators",
		Long: `Run the pod state machine with simulated subsystems.

The engine and one loop per subsystem share a data store. Operator
commands come from the autopilot (--autopilot) or from files dropped into
a trigger directory (--trigger-dir): calibrate, launch, stop, shutdown.
Transitions and status changes are recorded to SQLite when --db (or the
profile's recorder.path) is set.

Exit codes:
  0 - Run completed
  1 - Run ended fail-safe or was interrupted
  2 - Command error (bad profile path, database, flags)

Examples:
  podctl run --autopilot
  podctl run --profile official.cue --db runs.db --trigger-dir /tmp/pod
  podctl run --autopilot --fail propulsion@4s --timeout 2m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := executeRun(ctx, opts, opts.Logger())
			if err != nil {
				return err
			}
			return outputRun(cmd.OutOrStdout(), opts.Format, summary)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "run profile (.cue file or CUE package directory)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this SQLite database")
	cmd.Flags().StringVar(&opts.TriggerDir, "trigger-dir", "", "watch this directory for operator command files")
	cmd.Flags().BoolVar(&opts.Autopilot, "autopilot", false, "issue calibrate, launch and shutdown automatically")
	cmd.Flags().StringArrayVar(&opts.Faults, "fail", nil, "inject a critical failure, module@delay (repeatable)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "abort the run after this long (0 = no limit)")

	return cmd
}

// loadProfile loads path, or the default profile when path is empty.
func loadProfile(path string) (*config.Profile, error) {
	if path == "" {
		return config.Default(), nil
	}
	p, err := config.Load(path)
	if err != nil {
		var pe *config.ProfileError
		if errors.As(err, &pe) && pe.Field == "path" {
			return nil, WrapExitError(ExitCommandError, "failed to load profile", err)
		}
		return nil, WrapExitError(ExitFailure, "invalid profile", err)
	}
	return p, nil
}

func executeRun(ctx context.Context, opts *RunOptions, logger *slog.Logger) (*RunSummary, error) {
	profile, err := loadProfile(opts.Profile)
	if err != nil {
		return nil, err
	}

	faults := make([]sim.Fault, 0, len(opts.Faults))
	for _, s := range opts.Faults {
		f, err := sim.ParseFault(s)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --fail", err)
		}
		faults = append(faults, f)
	}
	if !opts.Autopilot && opts.TriggerDir == "" {
		return nil, NewExitError(ExitCommandError, "no operator: use --autopilot or --trigger-dir")
	}

	store := data.NewStore()
	flag := data.NewRunFlag()
	trace := engine.NewTrace()
	engineOpts := []engine.Option{engine.WithLogger(logger), engine.WithObserver(trace)}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = profile.RecorderPath
	}
	var (
		rs  *recorder.Store
		rec *recorder.Recorder
	)
	if dbPath != "" {
		rs, err = recorder.Open(dbPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := rs.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		gen := opts.RunIDGenerator
		if gen == nil {
			gen = recorder.UUIDv7Generator{}
		}
		run := recorder.Run{
			ID:         gen.Generate(),
			Profile:    profile.Name,
			Official:   profile.OfficialRun,
			Subscribed: profile.Subscribed,
			StartedAt:  time.Now(),
		}
		if err := rs.BeginRun(ctx, run); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to record run", err)
		}
		rec = recorder.New(rs, run.ID, logger)
		engineOpts = append(engineOpts, engine.WithObserver(rec))
	}

	eng, err := engine.New(store, flag, profile.Policy(), engineOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	cfg := sim.DefaultConfig()
	cfg.Period = profile.CyclePeriod
	cfg.StoppedVelocity = profile.StoppedVelocity
	cfg.Faults = faults
	cfg.Autopilot = opts.Autopilot
	bench, err := sim.NewBench(store, flag, pod.AllModuleSet, cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create bench", err)
	}

	var watcher *trigger.Watcher
	if opts.TriggerDir != "" {
		watcher, err = trigger.NewWatcher(opts.TriggerDir, logger)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create trigger watcher", err)
		}
		if err := watcher.Start(); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to watch trigger directory", err)
		}
		go func() {
			for c := range watcher.Commands {
				bench.Send(c)
			}
		}()
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// The recorder drains after the run, so it does not share runCtx.
	recDone := make(chan error, 1)
	if rec != nil {
		go func() { recDone <- rec.Run(context.Background()) }()
	}

	logger.Info("run starting",
		"profile", profile.Name,
		"official", profile.OfficialRun,
		"autopilot", opts.Autopilot,
		"faults", len(faults),
	)
	started := time.Now()

	var wg sync.WaitGroup
	var engErr, benchErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		engErr = eng.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		benchErr = bench.Run(runCtx)
	}()
	wg.Wait()
	elapsed := time.Since(started)

	if watcher != nil {
		watcher.Stop()
	}
	if err := errors.Join(engErr, benchErr); err != nil {
		logger.Warn("run interrupted", "error", err)
	}

	sm := store.StateMachine()
	nav := store.Navigation()
	summary := &RunSummary{
		Profile:      profile.Name,
		Official:     profile.OfficialRun,
		FinalPhase:   sm.CurrentPhase,
		Reason:       sm.Reason,
		Phases:       trace.Phases(),
		Cycles:       eng.Cycle(),
		Failed:       eng.Failed(),
		Displacement: nav.Displacement,
		Velocity:     nav.Velocity,
		Elapsed:      elapsed.Round(time.Millisecond).String(),
		Interrupted:  flag.Running(),
	}
	if summary.Phases == nil {
		summary.Phases = []pod.Phase{sm.CurrentPhase}
	}

	if rec != nil {
		rec.Close()
		if err := <-recDone; err != nil {
			logger.Error("recorder stopped early", "error", err)
		}
		summary.RunID = rec.RunID()
		if err := rs.EndRun(context.Background(), rec.RunID(), time.Now(), sm.CurrentPhase, eng.Cycle()); err != nil {
			return nil, WrapExitError(ExitFailure, "failed to finish recording", err)
		}
	}

	logger.Info("run finished",
		"phase", sm.CurrentPhase.String(),
		"cycles", summary.Cycles,
		"interrupted", summary.Interrupted,
	)
	return summary, nil
}

// outputRun prints the summary and maps the outcome to an exit code.
func outputRun(w io.Writer, format string, s *RunSummary) error {
	var code, msg string
	switch {
	case s.Interrupted:
		code, msg = CodeRunIncomplete, fmt.Sprintf("run interrupted in %s", s.FinalPhase)
	case s.FinalPhase.IsFailSafe():
		code, msg = CodeRunFailSafe, fmt.Sprintf("run ended in %s (%s)", s.FinalPhase, s.Reason)
	}

	if format == "json" {
		var err error
		if code == "" {
			err = okJSON(w, s)
		} else {
			err = errorJSON(w, code, msg, s)
		}
		if err != nil {
			return err
		}
	} else {
		writeRunText(w, s)
	}

	if code != "" {
		return NewExitError(ExitFailure, msg)
	}
	return nil
}

func writeRunText(w io.Writer, s *RunSummary) {
	id := s.RunID
	if id == "" {
		id = "(not recorded)"
	}
	kind := "bench run"
	if s.Official {
		kind = "official run"
	}
	phases := make([]string, len(s.Phases))
	for i, p := range s.Phases {
		phases[i] = p.String()
	}

	fmt.Fprintf(w, "Run %s: %s", id, s.FinalPhase)
	if s.Reason != "" {
		fmt.Fprintf(w, " (%s)", s.Reason)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  profile:  %s (%s)\n", s.Profile, kind)
	fmt.Fprintf(w, "  phases:   %s\n", strings.Join(phases, " -> "))
	printer.Fprintf(w, "  cycles:   %d\n", s.Cycles)
	printer.Fprintf(w, "  distance: %.1f m\n", s.Displacement)
	printer.Fprintf(w, "  velocity: %.2f m/s\n", s.Velocity)
	fmt.Fprintf(w, "  failed:   %s\n", s.Failed)
	fmt.Fprintf(w, "  elapsed:  %s\n", s.Elapsed)
	if s.Interrupted {
		fmt.Fprintln(w, "  interrupted before the run flag cleared")
	}
}
