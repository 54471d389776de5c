// Package planner turns stored medication schedules into dose events.
package planner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"github.com/cyp0633/doseplan/schedule"
	"github.com/cyp0633/doseplan/schedule/storage"
	"github.com/samber/mo"
	"golang.org/x/sync/errgroup"
)

// Plan is the generated events of one schedule.
type Plan struct {
	Schedule *storage.Schedule
	Events   []schedule.Event
}

// Planner loads a patient's habits, schedules and taken counts from a Storage and
// generates their events.
type Planner struct {
	store       storage.Storage
	engine      *schedule.Engine
	logger      *slog.Logger
	concurrency int
}

// New creates a planner reading from store. A nil engine means an uncached one.
func New(store storage.Storage, engine *schedule.Engine, opts ...Option) *Planner {
	if engine == nil {
		engine = schedule.NewEngine()
	}
	p := &Planner{
		store:       store,
		engine:      engine,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency: runtime.GOMAXPROCS(0),
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Option represents a configuration option for the Planner
type Option func(*Planner)

// WithLogger sets the logger for the planner
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithConcurrency bounds how many schedules PlanAll generates at once.
func WithConcurrency(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// Plan generates the events of one schedule between start and end (inclusive
// YYYY-MM-DD dates).
func (p *Planner) Plan(ctx context.Context, patientID, scheduleID, start, end string) ([]schedule.Event, error) {
	habits, err := p.store.GetHabits(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("loading habits of %s: %w", patientID, err)
	}

	sched, err := p.store.GetSchedule(ctx, patientID, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("loading schedule %s: %w", scheduleID, err)
	}

	return p.generate(ctx, sched, habits, start, end)
}

// PlanAll generates every schedule of a patient. Plans are ordered by schedule ID;
// the first failure cancels the rest.
func (p *Planner) PlanAll(ctx context.Context, patientID, start, end string) ([]Plan, error) {
	habits, err := p.store.GetHabits(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("loading habits of %s: %w", patientID, err)
	}

	schedules, err := p.store.ListSchedules(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("listing schedules of %s: %w", patientID, err)
	}
	slices.SortFunc(schedules, func(a, b *storage.Schedule) int {
		return strings.Compare(a.ID, b.ID)
	})

	plans := make([]Plan, len(schedules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, sched := range schedules {
		g.Go(func() error {
			events, err := p.generate(gctx, sched, habits, start, end)
			if err != nil {
				return err
			}
			plans[i] = Plan{Schedule: sched, Events: events}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("planned all schedules", "patient", patientID, "schedules", len(plans))
	return plans, nil
}

func (p *Planner) generate(ctx context.Context, sched *storage.Schedule, habits *schedule.Habits, start, end string) ([]schedule.Event, error) {
	req := schedule.Request{Start: start, End: end, Habits: habits}

	if countsDoses(sched.Rule.Until) {
		taken, err := p.store.CountTaken(ctx, sched.PatientID, sched.ID)
		if err != nil {
			return nil, fmt.Errorf("counting doses of %s: %w", sched.ID, err)
		}
		req.NumberTaken = mo.Some(taken)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events, err := p.engine.Generate(sched.Rule, req)
	if err != nil {
		return nil, fmt.Errorf("generating schedule %s: %w", sched.ID, err)
	}

	p.logger.Debug("planned schedule",
		"patient", sched.PatientID,
		"schedule", sched.ID,
		"events", len(events))
	return events, nil
}

func countsDoses(until schedule.Until) bool {
	switch until.(type) {
	case schedule.StopAfter, *schedule.StopAfter:
		return true
	}
	return false
}
