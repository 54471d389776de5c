package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cyp0633/doseplan/ics"
	"github.com/cyp0633/doseplan/internal/config"
	"github.com/cyp0633/doseplan/planner"
	"github.com/cyp0633/doseplan/schedule"
	"github.com/cyp0633/doseplan/schedule/storage"
	"github.com/cyp0633/doseplan/schedule/storage/memory"
	"github.com/spf13/cobra"
)

// GenerateFormats defines the allowed output formats of generate.
var GenerateFormats = []string{"text", "json", "ics"}

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	Patient  string
	Schedule string
	Start    string
	End      string
	Format   string
}

// planOutput is the JSON shape of one generated schedule.
type planOutput struct {
	Schedule string           `json:"schedule"`
	Name     string           `json:"name"`
	Events   []schedule.Event `json:"events"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate dose events for a patient",
		Long: `Generate the dose events of a patient's schedules between two dates (inclusive).

Without --schedule every schedule of the patient is generated.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), rootOpts, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.Patient, "patient", "p", "", "patient ID")
	cmd.Flags().StringVarP(&opts.Schedule, "schedule", "s", "", "only generate this schedule")
	cmd.Flags().StringVar(&opts.Start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.End, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "text", "output format (text|json|ics)")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runGenerate(ctx context.Context, rootOpts *RootOptions, opts *GenerateOptions, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !isValidFormat(opts.Format, GenerateFormats) {
		return invalidFormat(opts.Format, GenerateFormats)
	}

	logger := newLogger(errOut, rootOpts.Verbose)

	doc, err := config.Load(rootOpts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if _, ok := doc.Patient(opts.Patient); !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown patient %q", opts.Patient))
	}

	store := memory.New()
	if err := doc.Populate(ctx, store); err != nil {
		return WrapExitError(ExitCommandError, "failed to load schedules", err)
	}

	engine := schedule.NewEngineWithConfig(schedule.EngineConfig{Logger: logger})
	defer engine.Close()
	p := planner.New(store, engine, planner.WithLogger(logger))

	var plans []planner.Plan
	if opts.Schedule != "" {
		sched, err := store.GetSchedule(ctx, opts.Patient, opts.Schedule)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find schedule", err)
		}
		events, err := p.Plan(ctx, opts.Patient, opts.Schedule, opts.Start, opts.End)
		if err != nil {
			return WrapExitError(ExitFailure, "generation failed", err)
		}
		plans = []planner.Plan{{Schedule: sched, Events: events}}
	} else {
		plans, err = p.PlanAll(ctx, opts.Patient, opts.Start, opts.End)
		if err != nil {
			return WrapExitError(ExitFailure, "generation failed", err)
		}
	}

	habits, err := store.GetHabits(ctx, opts.Patient)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load habits", err)
	}
	normalized, err := schedule.NormalizeHabits(habits)
	if err != nil {
		logger.Warn("unusable timezone, falling back to UTC", "patient", opts.Patient, "error", err)
	}

	switch opts.Format {
	case "json":
		return writeJSON(out, plans)
	case "ics":
		return writeICS(out, plans, normalized.Location, logger)
	default:
		return writeText(out, plans, normalized.Location)
	}
}

func writeText(w io.Writer, plans []planner.Plan, loc *time.Location) error {
	for i, plan := range plans {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", plan.Schedule.Name, plan.Schedule.ID)
		if len(plan.Events) == 0 {
			fmt.Fprintln(w, "  no doses")
			continue
		}
		for _, e := range plan.Events {
			if e.Kind == schedule.DateOnly {
				fmt.Fprintf(w, "  %s  any time         #%d\n", e.Date, e.Index)
				continue
			}
			fmt.Fprintf(w, "  %s  #%d\n", e.Time.In(loc).Format("2006-01-02 15:04 MST"), e.Index)
		}
	}
	return nil
}

func writeJSON(w io.Writer, plans []planner.Plan) error {
	result := make([]planOutput, len(plans))
	for i, plan := range plans {
		result[i] = planOutput{
			Schedule: plan.Schedule.ID,
			Name:     plan.Schedule.Name,
			Events:   plan.Events,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// writeICS merges every plan into a single calendar. A window without doses
// writes nothing, like the text format's "no doses".
func writeICS(w io.Writer, plans []planner.Plan, loc *time.Location, logger *slog.Logger) error {
	cal := ics.ToCalendar(nil, ics.Options{Location: loc})
	for _, plan := range plans {
		part := ics.ToCalendar(plan.Events, icsOptions(plan.Schedule, loc))
		cal.Children = append(cal.Children, part.Children...)
	}
	err := ics.EncodeCalendar(w, cal)
	if errors.Is(err, ics.ErrNoEvents) {
		logger.Warn("no doses in range, calendar not written", "schedules", len(plans))
		return nil
	}
	return err
}

func icsOptions(sched *storage.Schedule, loc *time.Location) ics.Options {
	opts := ics.Options{
		ScheduleID: sched.ID,
		Summary:    sched.Name,
		Location:   loc,
	}
	if sched.Rule.Regularly {
		freq := sched.Rule.Frequency
		opts.Frequency = &freq
	}
	return opts
}
