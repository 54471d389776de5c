package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Unit is the calendar unit a frequency steps by.
type Unit int

const (
	Day Unit = iota
	Week
	Month
	Year
)

var unitNames = map[Unit]string{
	Day:   "day",
	Week:  "week",
	Month: "month",
	Year:  "year",
}

func (u Unit) String() string {
	if s, ok := unitNames[u]; ok {
		return s
	}
	return fmt.Sprintf("Unit(%d)", int(u))
}

// ParseUnit accepts singular or plural unit names, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for u, n := range unitNames {
		if n == name {
			return u, nil
		}
	}
	return Day, fmt.Errorf("unknown frequency unit %q", s)
}

// Habit is a named daily activity a dose can be anchored to.
type Habit int

const (
	Wake Habit = iota
	Breakfast
	Lunch
	Dinner
	Sleep
)

var habitNames = map[Habit]string{
	Wake:      "wake",
	Breakfast: "breakfast",
	Lunch:     "lunch",
	Dinner:    "dinner",
	Sleep:     "sleep",
}

func (h Habit) String() string {
	if s, ok := habitNames[h]; ok {
		return s
	}
	return fmt.Sprintf("Habit(%d)", int(h))
}

func (h Habit) valid() bool {
	_, ok := habitNames[h]
	return ok
}

func ParseHabit(s string) (Habit, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for h, n := range habitNames {
		if n == name {
			return h, nil
		}
	}
	return Wake, fmt.Errorf("unknown habit %q", s)
}

// When places a dose relative to its habit.
type When int

const (
	Before When = iota
	After
)

func (w When) String() string {
	if w == After {
		return "after"
	}
	return "before"
}

func ParseWhen(s string) (When, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "before":
		return Before, nil
	case "after":
		return After, nil
	}
	return Before, fmt.Errorf("unknown habit relation %q", s)
}

// ClockTime is a wall clock reading with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// Clock is shorthand for ClockTime{h, m}.
func Clock(h, m int) ClockTime {
	return ClockTime{Hour: h, Minute: m}
}

// ParseClockTime parses an HH:mm clock reading.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns the number of minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) Before(o ClockTime) bool {
	return c.Minutes() < o.Minutes()
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeSpec is one configured time of day within a recurrence. The variants are
// Unspecified, Exact and HabitEvent.
type TimeSpec interface {
	timeSpec()
}

// Unspecified doses may be taken at any time of the day.
type Unspecified struct{}

// Exact doses happen at a fixed UTC clock reading.
type Exact struct {
	Time ClockTime
}

// HabitEvent doses are anchored to one of the patient's daily habits.
type HabitEvent struct {
	Habit Habit
	When  When
}

func (Unspecified) timeSpec() {}
func (Exact) timeSpec()       {}
func (HabitEvent) timeSpec()  {}

// Until is the termination policy of a recurrence: Forever, StopAfter or StopOn.
type Until interface {
	until()
}

// Forever never truncates.
type Forever struct{}

// StopAfter caps the total number of doses, counting the ones already taken.
type StopAfter struct {
	Count int
}

// StopOn drops every event after the end of Date.
type StopOn struct {
	Date Date
}

func (Forever) until()   {}
func (StopAfter) until() {}
func (StopOn) until()    {}

// Exclusion removes positions from a secondary cycle of length Repeat.
type Exclusion struct {
	Repeat  int
	Exclude []int
}

func (e *Exclusion) excludes(index int) bool {
	for _, x := range e.Exclude {
		if x == index {
			return true
		}
	}
	return false
}

type Frequency struct {
	N       int
	Unit    Unit
	Exclude *Exclusion
}

// RecurrenceRule describes when a medication is due. It is owned by the caller and
// never modified by the engine.
type RecurrenceRule struct {
	Regularly  bool
	CycleStart Date
	Frequency  Frequency
	Times      []TimeSpec
	Until      Until
}
