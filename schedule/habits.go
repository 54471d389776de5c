package schedule

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// DefaultTimeZone is used when a patient has no timezone on record.
const DefaultTimeZone = "Etc/UTC"

var defaultClocks = map[Habit]ClockTime{
	Wake:      Clock(7, 0),
	Breakfast: Clock(8, 0),
	Lunch:     Clock(12, 0),
	Dinner:    Clock(19, 0),
	Sleep:     Clock(0, 0),
}

// Habits are a patient's daily routine as supplied by the caller. Any field may be
// absent; absent fields take their defaults during normalization.
type Habits struct {
	TZ        mo.Option[string]
	Wake      mo.Option[ClockTime]
	Breakfast mo.Option[ClockTime]
	Lunch     mo.Option[ClockTime]
	Dinner    mo.Option[ClockTime]
	Sleep     mo.Option[ClockTime]
}

// Get returns the clock time recorded for h, if any.
func (h *Habits) Get(habit Habit) mo.Option[ClockTime] {
	if h == nil {
		return mo.None[ClockTime]()
	}
	switch habit {
	case Wake:
		return h.Wake
	case Breakfast:
		return h.Breakfast
	case Lunch:
		return h.Lunch
	case Dinner:
		return h.Dinner
	case Sleep:
		return h.Sleep
	}
	return mo.None[ClockTime]()
}

// NormalizedHabits is the fully populated routine the engine works with.
type NormalizedHabits struct {
	TimeZone string
	Location *time.Location
	clocks   map[Habit]ClockTime

	// SleepsLate reports that bedtime is earlier on the clock than waking up,
	// i.e. the patient goes to bed after local midnight.
	SleepsLate bool
}

// Clock returns the clock time of habit h.
func (n NormalizedHabits) Clock(h Habit) ClockTime {
	return n.clocks[h]
}

// NormalizeHabits fills in defaults and resolves the timezone. h may be nil and is
// never modified. If the timezone cannot be loaded the returned record uses UTC and
// the error describes the failure.
func NormalizeHabits(h *Habits) (NormalizedHabits, error) {
	n := NormalizedHabits{
		TimeZone: DefaultTimeZone,
		Location: time.UTC,
		clocks:   make(map[Habit]ClockTime, len(defaultClocks)),
	}
	for habit, def := range defaultClocks {
		n.clocks[habit] = h.Get(habit).OrElse(def)
	}
	n.SleepsLate = n.clocks[Sleep].Before(n.clocks[Wake])

	if h == nil {
		return n, nil
	}
	tz, ok := h.TZ.Get()
	if !ok || tz == "" {
		return n, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return n, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	n.TimeZone = tz
	n.Location = loc
	return n, nil
}
