package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Config  string
}

// NewRootCommand creates the root command for the doseplan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "doseplan",
		Short: "doseplan - medication schedule planner",
		Long: `Expand medication recurrence rules into concrete dose events.

Schedules, patient habits and taken counts are read from a YAML config file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Config == "" {
				return NewExitError(ExitCommandError, "a config file is required (--config)")
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to the YAML config file")

	// Add subcommands
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// newLogger logs to w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func isValidFormat(format string, valid []string) bool {
	for _, f := range valid {
		if f == format {
			return true
		}
	}
	return false
}

func invalidFormat(format string, valid []string) error {
	return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", format, valid))
}
