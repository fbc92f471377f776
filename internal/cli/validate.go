package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/podctl/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// TimeoutView is a phase guard as shown by validate.
type TimeoutView struct {
	Phase      string `json:"phase"`
	After      string `json:"after"`
	EscalateTo string `json:"escalate_to"`
}

// ProfileView is the resolved profile as shown by validate.
type ProfileView struct {
	*config.Profile
	CyclePeriod string        `json:"cycle_period"`
	Timeouts    []TimeoutView `json:"timeouts"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <profile>",
		Short: "Validate a run profile",
		Long: `Validate a run profile against the schema and print the resolved values.

The profile may be a single .cue file or a directory holding a CUE package.
Defaults are filled in, and on a bench run the bench-exempt modules are
removed from the required-ready sets.

Exit codes:
  0 - Profile is valid
  1 - Profile is invalid
  2 - Profile could not be read

Examples:
  podctl validate official.cue
  podctl validate ./profiles/bench --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), opts, args[0])
		},
	}

	return cmd
}

func runValidate(w io.Writer, opts *ValidateOptions, path string) error {
	profile, err := config.Load(path)
	if err != nil {
		var pe *config.ProfileError
		if errors.As(err, &pe) && pe.Field == "path" {
			return WrapExitError(ExitCommandError, "failed to load profile", err)
		}
		if opts.Format == "json" {
			if jsonErr := errorJSON(w, CodeInvalidProfile, err.Error(), nil); jsonErr != nil {
				return jsonErr
			}
		}
		return WrapExitError(ExitFailure, "invalid profile", err)
	}

	view := newProfileView(profile)
	if opts.Format == "json" {
		return okJSON(w, view)
	}
	writeProfileText(w, view)
	return nil
}

func newProfileView(p *config.Profile) ProfileView {
	view := ProfileView{
		Profile:     p,
		CyclePeriod: p.CyclePeriod.String(),
		Timeouts:    []TimeoutView{},
	}
	for _, phase := range p.TimeoutPhases() {
		t := p.Timeouts[phase]
		view.Timeouts = append(view.Timeouts, TimeoutView{
			Phase:      phase.String(),
			After:      t.After.String(),
			EscalateTo: t.EscalateTo.String(),
		})
	}
	return view
}

func writeProfileText(w io.Writer, v ProfileView) {
	p := v.Profile
	kind := "bench run"
	if p.OfficialRun {
		kind = "official run"
	}
	fmt.Fprintf(w, "✓ %s is valid\n", p.Source)
	fmt.Fprintf(w, "  name:              %s (%s)\n", p.Name, kind)
	fmt.Fprintf(w, "  cycle period:      %s\n", v.CyclePeriod)
	printer.Fprintf(w, "  run length:        %.1f m\n", p.RunLength)
	printer.Fprintf(w, "  braking margin:    %.1f m\n", p.BrakingMargin)
	printer.Fprintf(w, "  cruise velocity:   %.2f m/s\n", p.CruiseVelocity)
	printer.Fprintf(w, "  stopped velocity:  %.2f m/s\n", p.StoppedVelocity)
	fmt.Fprintf(w, "  subscribed:        %s\n", p.Subscribed)
	fmt.Fprintf(w, "  calibrating ready: %s\n", p.CalibratingReady)
	fmt.Fprintf(w, "  launch ready:      %s\n", p.LaunchReady)
	fmt.Fprintf(w, "  bench exempt:      %s\n", p.BenchExempt)
	if len(v.Timeouts) == 0 {
		fmt.Fprintln(w, "  timeouts:          none")
	} else {
		fmt.Fprintln(w, "  timeouts:")
		for _, t := range v.Timeouts {
			fmt.Fprintf(w, "    %-17s after %s -> %s\n", t.Phase+":", t.After, t.EscalateTo)
		}
	}
	if p.RecorderPath != "" {
		fmt.Fprintf(w, "  recorder:          %s\n", p.RecorderPath)
	}
}
