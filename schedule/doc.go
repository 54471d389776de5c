/*
Package schedule generates the concrete dose events of a medication between two dates.

A RecurrenceRule places doses on a cycle grid anchored at CycleStart and stepping by
Frequency.N units. Grid dates may be dropped by a secondary exclusion cycle, and every
remaining date expands into one event per configured TimeSpec:

	rule := schedule.RecurrenceRule{
		Regularly:  true,
		CycleStart: schedule.MustParseDate("2020-01-01"),
		Frequency:  schedule.Frequency{N: 1, Unit: schedule.Day},
		Times: []schedule.TimeSpec{
			schedule.Unspecified{},
			schedule.HabitEvent{Habit: schedule.Sleep, When: schedule.Before},
		},
		Until: schedule.Forever{},
	}

	habits := &schedule.Habits{TZ: mo.Some("America/New_York")}
	events, err := schedule.Generate(rule, schedule.Request{
		Start:  "2020-01-03",
		End:    "2020-01-09",
		Habits: habits,
	})

# Time resolution

Unspecified specs produce date-only events. Exact specs are fixed UTC clock readings.
HabitEvent specs take the clock time of the patient's habit in the patient's
timezone; doses before sleep move to the next day when the patient goes to bed after
midnight, and doses after sleep are anchored to waking up.

Events are sorted chronologically with date-only events placed at the end of their
day, then capped by the rule's Until policy.

# Errors

Only the requested range can make generation fail; see ErrInvalidStartDate and
ErrInvalidEndDate. Malformed time specs are logged and skipped.
*/
package schedule
