package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/podctl/internal/sim"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	TriggerDir string
}

// SendResult is the JSON payload of send.
type SendResult struct {
	Command string `json:"command"`
	File    string `json:"file"`
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send an operator command to a running pod",
		Long: `Send an operator command to "podctl run --trigger-dir".

The command is delivered by creating a file named after it in the trigger
directory; the running controller removes the file once it has been
handed to the telemetry simulator.

Commands: calibrate, launch, stop, shutdown

Example:
  podctl send launch --trigger-dir /tmp/pod`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := sim.ParseCommand(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid command", err)
			}
			info, err := os.Stat(opts.TriggerDir)
			if err != nil || !info.IsDir() {
				return NewExitError(ExitCommandError, fmt.Sprintf("trigger directory not found: %s", opts.TriggerDir))
			}

			file := filepath.Join(opts.TriggerDir, c.String())
			stamp := time.Now().UTC().Format(time.RFC3339Nano) + "\n"
			if err := os.WriteFile(file, []byte(stamp), 0o644); err != nil {
				return WrapExitError(ExitCommandError, "failed to write trigger file", err)
			}
			opts.Logger().Info("command sent", "command", c.String(), "file", file)

			if opts.Format == "json" {
				return okJSON(cmd.OutOrStdout(), SendResult{Command: c.String(), File: file})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s (%s)\n", c, file)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.TriggerDir, "trigger-dir", "", "trigger directory watched by the controller (required)")
	_ = cmd.MarkFlagRequired("trigger-dir")

	return cmd
}
