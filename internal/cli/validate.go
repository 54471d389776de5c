package cli

import (
	"fmt"
	"io"

	"github.com/cyp0633/doseplan/internal/config"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file without generating anything",
		Long: `Validate the patients, habits and schedules of a config file.

Every problem is reported, not just the first one.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, out, errOut io.Writer) error {
	logger := newLogger(errOut, opts.Verbose)
	logger.Debug("validating config", "path", opts.Config)

	doc, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	schedules := 0
	for _, p := range doc.Patients {
		schedules += len(p.Schedules)
	}
	fmt.Fprintf(out, "config OK: %d patient(s), %d schedule(s)\n", len(doc.Patients), schedules)
	return nil
}
