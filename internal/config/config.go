// Package config loads patients, habits and medication schedules from YAML.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cyp0633/doseplan/schedule"
	"github.com/cyp0633/doseplan/schedule/storage"
	"github.com/cyp0633/doseplan/schedule/storage/memory"
	"github.com/samber/mo"
	"gopkg.in/yaml.v3"
)

// Document is the top-level configuration file.
type Document struct {
	// Timezone applies to patients whose habits don't name one.
	Timezone string    `yaml:"timezone,omitempty"`
	Patients []Patient `yaml:"patients"`
}

type Patient struct {
	ID        string     `yaml:"id"`
	Habits    *Habits    `yaml:"habits,omitempty"`
	Schedules []Schedule `yaml:"schedules"`
}

// Habits holds HH:mm clock readings; empty fields take the defaults.
type Habits struct {
	TZ        string `yaml:"tz,omitempty"`
	Wake      string `yaml:"wake,omitempty"`
	Breakfast string `yaml:"breakfast,omitempty"`
	Lunch     string `yaml:"lunch,omitempty"`
	Dinner    string `yaml:"dinner,omitempty"`
	Sleep     string `yaml:"sleep,omitempty"`
}

type Schedule struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
	// Regularly defaults to true when omitted.
	Regularly  *bool      `yaml:"regularly,omitempty"`
	CycleStart string     `yaml:"cycle_start"`
	Frequency  *Frequency `yaml:"frequency,omitempty"`
	// RRule is an alternative to Frequency, e.g. "FREQ=WEEKLY;INTERVAL=2".
	RRule string `yaml:"rrule,omitempty"`
	Times []Time `yaml:"times"`
	Until *Until `yaml:"until,omitempty"`
	Taken int    `yaml:"taken,omitempty"`
}

type Frequency struct {
	N       int      `yaml:"n"`
	Unit    string   `yaml:"unit"`
	Exclude *Exclude `yaml:"exclude,omitempty"`
}

type Exclude struct {
	Repeat  int   `yaml:"repeat"`
	Exclude []int `yaml:"exclude"`
}

// Time is one dose time: unspecified, exact (Time) or event (Event + When).
type Time struct {
	Type  string `yaml:"type"`
	Time  string `yaml:"time,omitempty"`
	Event string `yaml:"event,omitempty"`
	When  string `yaml:"when,omitempty"`
}

// Until is forever, number (Stop is a dose count) or date (Stop is YYYY-MM-DD).
type Until struct {
	Type string `yaml:"type"`
	Stop string `yaml:"stop,omitempty"`
}

// Time spec and until type names.
const (
	TimeUnspecified = "unspecified"
	TimeExact       = "exact"
	TimeEvent       = "event"

	UntilForever = "forever"
	UntilNumber  = "number"
	UntilDate    = "date"
)

// Load reads and parses a configuration file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document, rejecting unknown fields, and validates
// it.
func Parse(data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &doc, nil
}

// Validate reports every problem of the document at once.
func (d *Document) Validate() error {
	var errs []error
	if d.Timezone != "" {
		if _, err := time.LoadLocation(d.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone: %w", err))
		}
	}

	patients := make(map[string]bool)
	for i := range d.Patients {
		p := &d.Patients[i]
		where := fmt.Sprintf("patients[%d]", i)
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", where))
		} else if patients[p.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate patient id %q", where, p.ID))
		}
		patients[p.ID] = true

		if _, err := p.habits(d.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("%s.habits: %w", where, err))
		}

		schedules := make(map[string]bool)
		for j := range p.Schedules {
			s := &p.Schedules[j]
			swhere := fmt.Sprintf("%s.schedules[%d]", where, j)
			if s.ID == "" {
				errs = append(errs, fmt.Errorf("%s: id is required", swhere))
			} else if schedules[s.ID] {
				errs = append(errs, fmt.Errorf("%s: duplicate schedule id %q", swhere, s.ID))
			}
			schedules[s.ID] = true

			if s.Taken < 0 {
				errs = append(errs, fmt.Errorf("%s: taken cannot be negative", swhere))
			}
			if _, err := s.Rule(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", swhere, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Patient finds a patient by ID.
func (d *Document) Patient(id string) (*Patient, bool) {
	for i := range d.Patients {
		if d.Patients[i].ID == id {
			return &d.Patients[i], true
		}
	}
	return nil, false
}

// Populate loads every patient of the document into store.
func (d *Document) Populate(ctx context.Context, store *memory.Store) error {
	for _, p := range d.Patients {
		habits, err := p.habits(d.Timezone)
		if err != nil {
			return fmt.Errorf("patient %s: %w", p.ID, err)
		}
		if habits != nil {
			if err := store.PutHabits(ctx, p.ID, *habits); err != nil {
				return fmt.Errorf("patient %s: %w", p.ID, err)
			}
		}

		for _, s := range p.Schedules {
			rule, err := s.Rule()
			if err != nil {
				return fmt.Errorf("schedule %s: %w", s.ID, err)
			}
			name := s.Name
			if name == "" {
				name = s.ID
			}
			if err := store.CreateSchedule(ctx, &storage.Schedule{
				ID:        s.ID,
				PatientID: p.ID,
				Name:      name,
				Rule:      rule,
			}); err != nil {
				return fmt.Errorf("schedule %s: %w", s.ID, err)
			}
			if s.Taken > 0 {
				if _, err := store.RecordTaken(ctx, p.ID, s.ID, s.Taken); err != nil {
					return fmt.Errorf("schedule %s: %w", s.ID, err)
				}
			}
		}
	}
	return nil
}

// habits is nil when neither the patient nor the document configures anything.
func (p *Patient) habits(defaultTZ string) (*schedule.Habits, error) {
	if p.Habits == nil && defaultTZ == "" {
		return nil, nil
	}
	var h Habits
	if p.Habits != nil {
		h = *p.Habits
	}

	var errs []error
	out := &schedule.Habits{}

	tz := h.TZ
	if tz == "" {
		tz = defaultTZ
	}
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("tz: %w", err))
		}
		out.TZ = mo.Some(tz)
	}

	clocks := []struct {
		name  string
		value string
		dst   *mo.Option[schedule.ClockTime]
	}{
		{"wake", h.Wake, &out.Wake},
		{"breakfast", h.Breakfast, &out.Breakfast},
		{"lunch", h.Lunch, &out.Lunch},
		{"dinner", h.Dinner, &out.Dinner},
		{"sleep", h.Sleep, &out.Sleep},
	}
	for _, c := range clocks {
		if c.value == "" {
			continue
		}
		t, err := schedule.ParseClockTime(c.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		*c.dst = mo.Some(t)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Rule converts the schedule into a recurrence rule.
func (s *Schedule) Rule() (schedule.RecurrenceRule, error) {
	var errs []error
	rule := schedule.RecurrenceRule{
		Regularly: s.Regularly == nil || *s.Regularly,
		Until:     schedule.Forever{},
	}

	if start, err := schedule.ParseDate(s.CycleStart); err != nil {
		errs = append(errs, fmt.Errorf("cycle_start: %w", err))
	} else {
		rule.CycleStart = start
	}

	switch {
	case s.Frequency != nil && s.RRule != "":
		errs = append(errs, errors.New("frequency and rrule are mutually exclusive"))
	case s.RRule != "":
		freq, err := schedule.FrequencyFromRRule(s.RRule)
		if err != nil {
			errs = append(errs, fmt.Errorf("rrule: %w", err))
		}
		rule.Frequency = freq
	case s.Frequency != nil:
		freq, err := s.Frequency.frequency()
		if err != nil {
			errs = append(errs, fmt.Errorf("frequency: %w", err))
		}
		rule.Frequency = freq
	default:
		errs = append(errs, errors.New("frequency or rrule is required"))
	}

	for i, t := range s.Times {
		spec, err := t.spec()
		if err != nil {
			errs = append(errs, fmt.Errorf("times[%d]: %w", i, err))
			continue
		}
		rule.Times = append(rule.Times, spec)
	}

	if s.Until != nil {
		until, err := s.Until.until()
		if err != nil {
			errs = append(errs, fmt.Errorf("until: %w", err))
		} else {
			rule.Until = until
		}
	}

	if err := errors.Join(errs...); err != nil {
		return schedule.RecurrenceRule{}, err
	}
	return rule, nil
}

func (f *Frequency) frequency() (schedule.Frequency, error) {
	var errs []error
	unit, err := schedule.ParseUnit(f.Unit)
	if err != nil {
		errs = append(errs, err)
	}
	if f.N < 1 {
		errs = append(errs, fmt.Errorf("n must be positive, got %d", f.N))
	}

	freq := schedule.Frequency{N: f.N, Unit: unit}
	if ex := f.Exclude; ex != nil {
		if ex.Repeat < 1 {
			errs = append(errs, fmt.Errorf("exclude.repeat must be positive, got %d", ex.Repeat))
		}
		for _, idx := range ex.Exclude {
			if idx < 0 || idx >= ex.Repeat {
				errs = append(errs, fmt.Errorf("exclude index %d outside [0, %d)", idx, ex.Repeat))
			}
		}
		freq.Exclude = &schedule.Exclusion{Repeat: ex.Repeat, Exclude: ex.Exclude}
	}
	return freq, errors.Join(errs...)
}

func (t *Time) spec() (schedule.TimeSpec, error) {
	switch strings.ToLower(t.Type) {
	case TimeUnspecified:
		return schedule.Unspecified{}, nil
	case TimeExact:
		c, err := schedule.ParseClockTime(t.Time)
		if err != nil {
			return nil, err
		}
		return schedule.Exact{Time: c}, nil
	case TimeEvent:
		habit, herr := schedule.ParseHabit(t.Event)
		when, werr := schedule.ParseWhen(t.When)
		if err := errors.Join(herr, werr); err != nil {
			return nil, err
		}
		return schedule.HabitEvent{Habit: habit, When: when}, nil
	}
	return nil, fmt.Errorf("unknown time type %q", t.Type)
}

func (u *Until) until() (schedule.Until, error) {
	switch strings.ToLower(u.Type) {
	case UntilForever, "":
		return schedule.Forever{}, nil
	case UntilNumber:
		n, err := strconv.Atoi(strings.TrimSpace(u.Stop))
		if err != nil {
			return nil, fmt.Errorf("stop must be a dose count: %w", err)
		}
		if n < 0 {
			return nil, fmt.Errorf("stop cannot be negative, got %d", n)
		}
		return schedule.StopAfter{Count: n}, nil
	case UntilDate:
		d, err := schedule.ParseDate(u.Stop)
		if err != nil {
			return nil, fmt.Errorf("stop must be a date: %w", err)
		}
		return schedule.StopOn{Date: d}, nil
	}
	return nil, fmt.Errorf("unknown until type %q", u.Type)
}
