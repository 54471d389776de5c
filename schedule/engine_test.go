package schedule

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func daily(times ...TimeSpec) RecurrenceRule {
	return RecurrenceRule{
		Regularly:  true,
		CycleStart: MustParseDate("2020-01-01"),
		Frequency:  Frequency{N: 1, Unit: Day},
		Times:      times,
		Until:      Forever{},
	}
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func dates(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Date.String())
	}
	return out
}

func indexes(events []Event) []int {
	out := make([]int, 0, len(events))
	for _, e := range events {
		out = append(out, e.Index)
	}
	return out
}

func TestEngine_EndToEnd(t *testing.T) {
	events, err := Generate(daily(Unspecified{}), Request{
		Start:  "2020-01-03",
		End:    "2020-01-04",
		Habits: &Habits{TZ: mo.Some("Etc/UTC")},
	})
	require.NoError(t, err)

	assert.Equal(t, []Event{
		{Index: 0, Kind: DateOnly, Date: MustParseDate("2020-01-03")},
		{Index: 0, Kind: DateOnly, Date: MustParseDate("2020-01-04")},
	}, events)
}

func TestEngine_Irregular(t *testing.T) {
	rule := daily(Unspecified{}, Exact{Time: Clock(9, 0)})
	rule.Regularly = false

	events, err := Generate(rule, Request{Start: "2020-01-01", End: "2020-12-31"})
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestEngine_InvalidRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		want       ErrorType
	}{
		{"end before start", "2020-02-01", "2020-01-01", ErrInvalidEndDate},
		{"malformed start", "01/02/2020", "2020-01-01", ErrInvalidStartDate},
		{"impossible start", "2020-02-30", "2020-03-01", ErrInvalidStartDate},
		{"malformed end", "2020-01-01", "soon", ErrInvalidEndDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Generate(daily(Unspecified{}), Request{Start: tt.start, End: tt.end})
			require.Error(t, err)
			assert.Nil(t, events)
			assert.True(t, IsErrorType(err, tt.want), "got %v", err)
			assert.ErrorIs(t, err, &Error{Type: tt.want})
		})
	}

	// Range errors are reported even when nothing would be generated.
	rule := daily(Unspecified{})
	rule.Regularly = false
	_, err := Generate(rule, Request{Start: "2020-02-01", End: "2020-01-01"})
	assert.True(t, IsErrorType(err, ErrInvalidEndDate))
}

func TestEngine_SingleDayRange(t *testing.T) {
	events, err := Generate(daily(Unspecified{}), Request{Start: "2020-01-05", End: "2020-01-05"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-05"}, dates(events))
}

func TestEngine_CycleAlignment(t *testing.T) {
	tests := []struct {
		name       string
		cycleStart string
		freq       Frequency
		start, end string
		want       []string
	}{
		{
			name:       "every third day after the anchor",
			cycleStart: "2020-01-01",
			freq:       Frequency{N: 3, Unit: Day},
			start:      "2020-01-05", end: "2020-01-15",
			want: []string{"2020-01-07", "2020-01-10", "2020-01-13"},
		},
		{
			name:       "range before the anchor",
			cycleStart: "2020-01-10",
			freq:       Frequency{N: 4, Unit: Day},
			start:      "2020-01-01", end: "2020-01-10",
			want: []string{"2020-01-02", "2020-01-06", "2020-01-10"},
		},
		{
			name:       "fortnightly",
			cycleStart: "2020-01-01",
			freq:       Frequency{N: 2, Unit: Week},
			start:      "2020-01-02", end: "2020-02-12",
			want: []string{"2020-01-15", "2020-01-29", "2020-02-12"},
		},
		{
			name:       "monthly from the 31st clamps without drifting",
			cycleStart: "2020-01-31",
			freq:       Frequency{N: 1, Unit: Month},
			start:      "2020-02-01", end: "2020-05-31",
			want: []string{"2020-02-29", "2020-03-31", "2020-04-30", "2020-05-31"},
		},
		{
			name:       "yearly from a leap day",
			cycleStart: "2020-02-29",
			freq:       Frequency{N: 1, Unit: Year},
			start:      "2021-01-01", end: "2024-12-31",
			want: []string{"2021-02-28", "2022-02-28", "2023-02-28", "2024-02-29"},
		},
		{
			name:       "no grid date in range",
			cycleStart: "2020-01-01",
			freq:       Frequency{N: 10, Unit: Day},
			start:      "2020-01-02", end: "2020-01-10",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := daily(Unspecified{})
			rule.CycleStart = MustParseDate(tt.cycleStart)
			rule.Frequency = tt.freq

			events, err := Generate(rule, Request{Start: tt.start, End: tt.end})
			require.NoError(t, err)
			assert.Equal(t, tt.want, dates(events))
		})
	}
}

func TestEngine_Exclusion(t *testing.T) {
	rule := daily(Unspecified{})
	rule.Frequency.Exclude = &Exclusion{Repeat: 3, Exclude: []int{0}}

	events, err := Generate(rule, Request{Start: "2020-01-01", End: "2020-01-07"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-02", "2020-01-03", "2020-01-05", "2020-01-06"}, dates(events))

	// Indexes before the anchor wrap around instead of going negative.
	events, err = Generate(rule, Request{Start: "2019-12-29", End: "2020-01-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2019-12-30", "2019-12-31"}, dates(events))

	assert.Equal(t, 0, exclusionIndex(rule.CycleStart, rule.CycleStart, Day, 3))
}

func TestEngine_WeekdaysOnly(t *testing.T) {
	// 2020-01-06 is a Monday; skip the weekend positions of a 7-day cycle.
	rule := daily(Unspecified{})
	rule.CycleStart = MustParseDate("2020-01-06")
	rule.Frequency.Exclude = &Exclusion{Repeat: 7, Exclude: []int{5, 6}}

	events, err := Generate(rule, Request{Start: "2020-01-01", End: "2020-01-14"})
	require.NoError(t, err)

	for _, e := range events {
		wd := e.Date.Start(time.UTC).Weekday()
		assert.NotEqual(t, time.Saturday, wd, e.Date.String())
		assert.NotEqual(t, time.Sunday, wd, e.Date.String())
	}
	assert.Len(t, events, 10)
}

func TestEngine_MidnightRollover(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	habits := &Habits{
		TZ:    mo.Some("America/New_York"),
		Wake:  mo.Some(Clock(7, 0)),
		Sleep: mo.Some(Clock(0, 30)),
	}

	events, err := Generate(daily(HabitEvent{Habit: Sleep, When: Before}), Request{
		Start:  "2020-01-05",
		End:    "2020-01-05",
		Habits: habits,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, Timestamp, events[0].Kind)
	assert.True(t, events[0].Time.Equal(time.Date(2020, 1, 6, 0, 30, 0, 0, ny)), events[0].Time.String())
}

func TestEngine_SleepBeforeMidnight(t *testing.T) {
	habits := &Habits{Wake: mo.Some(Clock(7, 0)), Sleep: mo.Some(Clock(22, 45))}

	events, err := Generate(daily(HabitEvent{Habit: Sleep, When: Before}), Request{
		Start:  "2020-01-05",
		End:    "2020-01-05",
		Habits: habits,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Time.Equal(time.Date(2020, 1, 5, 22, 45, 0, 0, time.UTC)))
}

func TestEngine_ExactIsUTC(t *testing.T) {
	for _, tz := range []string{"Etc/UTC", "Asia/Tokyo", "America/Los_Angeles", "Pacific/Kiritimati"} {
		t.Run(tz, func(t *testing.T) {
			events, err := Generate(daily(Exact{Time: Clock(14, 0)}), Request{
				Start:  "2020-06-01",
				End:    "2020-06-01",
				Habits: &Habits{TZ: mo.Some(tz)},
			})
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, "2020-06-01T14:00:00Z", events[0].Time.Format(time.RFC3339))
		})
	}
}

func TestEngine_HabitResolution(t *testing.T) {
	london := mustLoad(t, "Europe/London")
	habits := &Habits{
		TZ:        mo.Some("Europe/London"),
		Wake:      mo.Some(Clock(6, 15)),
		Breakfast: mo.Some(Clock(7, 30)),
		Sleep:     mo.Some(Clock(23, 0)),
	}

	tests := []struct {
		name string
		spec HabitEvent
		want time.Time
	}{
		{"after sleep means on waking", HabitEvent{Sleep, After}, time.Date(2020, 7, 1, 6, 15, 0, 0, london)},
		{"before sleep", HabitEvent{Sleep, Before}, time.Date(2020, 7, 1, 23, 0, 0, 0, london)},
		{"before breakfast", HabitEvent{Breakfast, Before}, time.Date(2020, 7, 1, 7, 30, 0, 0, london)},
		{"after breakfast", HabitEvent{Breakfast, After}, time.Date(2020, 7, 1, 7, 30, 0, 0, london)},
		{"default lunch", HabitEvent{Lunch, After}, time.Date(2020, 7, 1, 12, 0, 0, 0, london)},
		{"default dinner", HabitEvent{Dinner, Before}, time.Date(2020, 7, 1, 19, 0, 0, 0, london)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Generate(daily(tt.spec), Request{Start: "2020-07-01", End: "2020-07-01", Habits: habits})
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.True(t, tt.want.Equal(events[0].Time), "want %s got %s", tt.want, events[0].Time)
			assert.Equal(t, 0, events[0].Time.Second())
		})
	}
}

func TestEngine_HabitAcrossDST(t *testing.T) {
	habits := &Habits{TZ: mo.Some("America/New_York")}

	events, err := Generate(daily(HabitEvent{Wake, Before}), Request{Start: "2020-03-07", End: "2020-03-08", Habits: habits})
	require.NoError(t, err)
	require.Len(t, events, 2)

	// 07:00 local on both days: EST then EDT.
	assert.Equal(t, "2020-03-07T12:00:00Z", events[0].Time.UTC().Format(time.RFC3339))
	assert.Equal(t, "2020-03-08T11:00:00Z", events[1].Time.UTC().Format(time.RFC3339))
}

func TestEngine_SortsTimedBeforeDateOnly(t *testing.T) {
	rule := daily(Unspecified{}, Exact{Time: Clock(23, 0)}, HabitEvent{Breakfast, Before})

	events, err := Generate(rule, Request{Start: "2020-01-03", End: "2020-01-04"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0, 2, 1, 0}, indexes(events))
}

func TestEngine_SortUsesLocalEndOfDay(t *testing.T) {
	rule := daily(Unspecified{}, Exact{Time: Clock(2, 0)})

	events, err := Generate(rule, Request{
		Start:  "2020-01-03",
		End:    "2020-01-04",
		Habits: &Habits{TZ: mo.Some("America/New_York")},
	})
	require.NoError(t, err)
	require.Len(t, events, 4)

	// 02:00 UTC on the 4th is still the evening of the 3rd in New York, so both
	// exact doses come before the 3rd's "anytime" dose.
	assert.Equal(t, []int{1, 1, 0, 0}, indexes(events))
	assert.Equal(t, "2020-01-03", events[2].Date.String())
	assert.Equal(t, "2020-01-04", events[3].Date.String())
}

func TestEngine_CountTruncation(t *testing.T) {
	rule := daily(Unspecified{})
	rule.Until = StopAfter{Count: 5}

	tests := []struct {
		name  string
		taken mo.Option[int]
		want  int
	}{
		{"none taken", mo.Some(0), 5},
		{"some taken", mo.Some(2), 3},
		{"all taken", mo.Some(5), 0},
		{"more than allowed taken", mo.Some(7), 0},
		{"unknown count", mo.None[int](), 10},
		{"negative count", mo.Some(-1), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Generate(rule, Request{Start: "2020-01-01", End: "2020-01-10", NumberTaken: tt.taken})
			require.NoError(t, err)
			assert.Len(t, events, tt.want)
			if tt.want > 0 {
				assert.Equal(t, "2020-01-01", events[0].Date.String())
			}
		})
	}

	// Fewer events available than remaining doses.
	events, err := NewEngine().GenerateSchedule(rule, "2020-01-01", "2020-01-02", nil, 1)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEngine_DateTruncation(t *testing.T) {
	rule := daily(Unspecified{})
	rule.Until = StopOn{Date: MustParseDate("2020-01-05")}

	events, err := Generate(rule, Request{Start: "2020-01-01", End: "2020-01-10"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-01", "2020-01-02", "2020-01-03", "2020-01-04", "2020-01-05"}, dates(events))

	// The stop date ends at local midnight: 03:00 UTC on the 4th is still the 3rd in New York.
	rule = daily(Exact{Time: Clock(3, 0)})
	rule.Until = &StopOn{Date: MustParseDate("2020-01-03")}
	events, err = Generate(rule, Request{
		Start:  "2020-01-01",
		End:    "2020-01-10",
		Habits: &Habits{TZ: mo.Some("America/New_York")},
	})
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "2020-01-04T03:00:00Z", events[3].Time.Format(time.RFC3339))
}

func TestEngine_NilUntilMeansForever(t *testing.T) {
	rule := daily(Unspecified{})
	rule.Until = nil

	events, err := Generate(rule, Request{Start: "2020-01-01", End: "2020-01-10", NumberTaken: mo.Some(3)})
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestEngine_SkipsMalformedSpecs(t *testing.T) {
	rule := daily(nil, Unspecified{}, HabitEvent{Habit: Habit(42)}, (*Exact)(nil), &Exact{Time: Clock(9, 0)})

	events, err := Generate(rule, Request{Start: "2020-01-01", End: "2020-01-01"})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1}, indexes(events))
}

func TestEngine_NonPositiveFrequency(t *testing.T) {
	rule := daily(Unspecified{})
	rule.Frequency.N = 0

	events, err := Generate(rule, Request{Start: "2020-01-01", End: "2020-01-03"})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestEngine_UnknownTimeZoneFallsBackToUTC(t *testing.T) {
	events, err := Generate(daily(HabitEvent{Breakfast, After}), Request{
		Start:  "2020-01-01",
		End:    "2020-01-01",
		Habits: &Habits{TZ: mo.Some("Mars/Olympus_Mons")},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2020-01-01T08:00:00Z", events[0].Time.Format(time.RFC3339))
}

func TestEngine_DoesNotMutateInputs(t *testing.T) {
	habits := &Habits{Wake: mo.Some(Clock(6, 0))}
	exclude := []int{1}
	rule := daily(Unspecified{}, HabitEvent{Lunch, Before})
	rule.Frequency.Exclude = &Exclusion{Repeat: 2, Exclude: exclude}

	_, err := Generate(rule, Request{Start: "2020-01-01", End: "2020-01-31", Habits: habits})
	require.NoError(t, err)

	assert.True(t, habits.Lunch.IsAbsent())
	assert.True(t, habits.TZ.IsAbsent())
	assert.Equal(t, []int{1}, rule.Frequency.Exclude.Exclude)
	assert.Len(t, rule.Times, 2)
}

func TestEngine_Deterministic(t *testing.T) {
	rule := daily(Unspecified{}, Exact{Time: Clock(0, 0)}, HabitEvent{Sleep, Before})
	req := Request{Start: "2020-01-01", End: "2020-02-01", Habits: &Habits{TZ: mo.Some("Asia/Kolkata")}}

	first, err := Generate(rule, req)
	require.NoError(t, err)
	second, err := Generate(rule, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEngine_CountCapKeepsTimedPrefix(t *testing.T) {
	rule := daily(Unspecified{}, HabitEvent{Breakfast, After})
	req := Request{Start: "2020-01-01", End: "2020-01-03", Habits: &Habits{TZ: mo.Some("America/New_York")}}

	all, err := Generate(rule, req)
	require.NoError(t, err)

	rule.Until = StopAfter{Count: 3}
	req.NumberTaken = mo.Some(0)
	capped, err := Generate(rule, req)
	require.NoError(t, err)

	require.Len(t, capped, 3)
	for i := range capped {
		assert.True(t, sameEvent(all[i], capped[i]), "event %d: %v != %v", i, all[i], capped[i])
	}
	assert.Equal(t, Timestamp, capped[0].Kind)
}
