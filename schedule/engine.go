package schedule

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/mo"
)

// Request is one generation call: an inclusive YYYY-MM-DD date range, the
// patient's habits (nil for all defaults) and the number of doses already taken.
type Request struct {
	Start  string
	End    string
	Habits *Habits

	// NumberTaken only matters for StopAfter rules. When absent or negative the
	// count cap is not applied.
	NumberTaken mo.Option[int]
}

// Engine generates dose events from recurrence rules. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	cache  *GenerationCache
	config EngineConfig
	logger *slog.Logger
}

// NewEngine creates an engine without a cache that discards its logs.
func NewEngine() *Engine {
	return NewEngineWithConfig(DisabledCacheConfig)
}

var defaultEngine = NewEngine()

// Generate runs rule over req with an uncached, silent engine.
func Generate(rule RecurrenceRule, req Request) ([]Event, error) {
	return defaultEngine.Generate(rule, req)
}

// Close releases the engine's cache, if any.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats reports cache occupancy; the zero value when caching is disabled.
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// GenerateSchedule is Generate with positional arguments.
func (e *Engine) GenerateSchedule(rule RecurrenceRule, start, end string, habits *Habits, numberTaken int) ([]Event, error) {
	return e.Generate(rule, Request{
		Start:       start,
		End:         end,
		Habits:      habits,
		NumberTaken: mo.Some(numberTaken),
	})
}

// Generate returns the events of rule between req.Start and req.End (inclusive),
// sorted chronologically with date-only events at the end of their day, and
// truncated according to rule.Until.
func (e *Engine) Generate(rule RecurrenceRule, req Request) ([]Event, error) {
	habits, err := NormalizeHabits(req.Habits)
	if err != nil {
		e.logger.Warn("unusable timezone, falling back to UTC", "error", err)
	}

	start, err := ParseDate(req.Start)
	if err != nil {
		return nil, &Error{Type: ErrInvalidStartDate, Message: "start must be a YYYY-MM-DD date", Err: err}
	}
	end, err := ParseDate(req.End)
	if err != nil {
		return nil, &Error{Type: ErrInvalidEndDate, Message: "end must be a YYYY-MM-DD date", Err: err}
	}
	if end.Before(start) {
		return nil, &Error{Type: ErrInvalidEndDate, Message: fmt.Sprintf("end %s is before start %s", end, start)}
	}

	if !rule.Regularly {
		return []Event{}, nil
	}

	var key string
	if e.cache != nil {
		key = cacheKey(rule, start, end, req)
		if events, ok := e.cache.Get(key); ok {
			e.logger.Debug("schedule cache hit", "start", start, "end", end, "events", len(events))
			return events, nil
		}
	}

	events := e.generate(rule, start, end, habits, req.NumberTaken)

	if e.cache != nil {
		e.cache.Set(key, events)
	}
	e.logger.Debug("generated schedule",
		"start", start,
		"end", end,
		"timezone", habits.TimeZone,
		"events", len(events))

	return events, nil
}

func (e *Engine) generate(rule RecurrenceRule, start, end Date, habits NormalizedHabits, taken mo.Option[int]) []Event {
	freq := rule.Frequency
	if freq.N < 1 {
		e.logger.Warn("non-positive frequency, stepping by one", "n", freq.N, "unit", freq.Unit)
		freq.N = 1
	}

	events := make([]Event, 0)
	for _, date := range expandDates(rule.CycleStart, freq, start, end) {
		if ex := freq.Exclude; ex != nil && ex.Repeat > 0 {
			if ex.excludes(exclusionIndex(rule.CycleStart, date, freq.Unit, ex.Repeat)) {
				continue
			}
		}
		events = append(events, e.resolveTimes(date, rule.Times, habits)...)
	}

	sortEvents(events, habits.Location)
	return truncate(events, rule.Until, taken, habits.Location)
}

// gridDate is the k-th date of the cycle grid anchored at cycleStart.
func gridDate(cycleStart Date, freq Frequency, k int) Date {
	return cycleStart.Add(freq.Unit, k*freq.N)
}

// alignCycle returns the grid index of the first grid date on or after start.
func alignCycle(cycleStart Date, freq Frequency, start Date) int {
	k := floorDiv(Diff(cycleStart, start, freq.Unit), freq.N)
	for !gridDate(cycleStart, freq, k-1).Before(start) {
		k--
	}
	for gridDate(cycleStart, freq, k).Before(start) {
		k++
	}
	return k
}

// expandDates lists the grid dates within [start, end]. Every date is computed
// from the anchor, so clamped month steps never drift.
func expandDates(cycleStart Date, freq Frequency, start, end Date) []Date {
	var dates []Date
	for k := alignCycle(cycleStart, freq, start); ; k++ {
		date := gridDate(cycleStart, freq, k)
		if date.After(end) {
			break
		}
		dates = append(dates, date)
	}
	return dates
}

// exclusionIndex is the position of date within the exclusion cycle; cycleStart is 0.
func exclusionIndex(cycleStart, date Date, unit Unit, repeat int) int {
	return mod(Diff(cycleStart, date, unit), repeat)
}

func (e *Engine) resolveTimes(date Date, times []TimeSpec, habits NormalizedHabits) []Event {
	out := make([]Event, 0, len(times))
	for i, spec := range times {
		switch s := specValue(spec).(type) {
		case Unspecified:
			out = append(out, Event{Index: i, Kind: DateOnly, Date: date})
		case Exact:
			// Anchored to the UTC clock: a timezone change moves the local reading, not the instant.
			out = append(out, Event{Index: i, Kind: Timestamp, Time: date.At(s.Time, time.UTC)})
		case HabitEvent:
			habit := s.Habit
			if habit == Sleep && s.When == After {
				habit = Wake
			}
			if !habit.valid() {
				e.logger.Warn("skipping time spec with unknown habit", "index", i, "habit", s.Habit)
				continue
			}
			day := date
			if habit == Sleep && habits.SleepsLate {
				day = date.AddDays(1)
			}
			out = append(out, Event{Index: i, Kind: Timestamp, Time: day.At(habits.Clock(habit), habits.Location)})
		default:
			e.logger.Warn("skipping unknown time spec", "index", i, "spec", fmt.Sprintf("%T", spec))
		}
	}
	return out
}

func sortEvents(events []Event, loc *time.Location) {
	slices.SortStableFunc(events, func(a, b Event) int {
		return a.SortKey(loc).Compare(b.SortKey(loc))
	})
}

func truncate(events []Event, until Until, taken mo.Option[int], loc *time.Location) []Event {
	switch u := untilValue(until).(type) {
	case StopAfter:
		n, ok := taken.Get()
		if !ok || n < 0 {
			return events
		}
		remaining := max(u.Count-n, 0)
		if remaining < len(events) {
			events = events[:remaining]
		}
	case StopOn:
		stop := u.Date.EndOfDay(loc)
		kept := events[:0]
		for _, ev := range events {
			if !ev.SortKey(loc).After(stop) {
				kept = append(kept, ev)
			}
		}
		events = kept
	}
	return events
}

// specValue dereferences pointer variants so callers may use either form.
func specValue(spec TimeSpec) TimeSpec {
	switch s := spec.(type) {
	case *Unspecified:
		if s != nil {
			return *s
		}
	case *Exact:
		if s != nil {
			return *s
		}
	case *HabitEvent:
		if s != nil {
			return *s
		}
	default:
		return spec
	}
	return nil
}

func untilValue(until Until) Until {
	switch u := until.(type) {
	case *Forever:
		if u != nil {
			return *u
		}
	case *StopAfter:
		if u != nil {
			return *u
		}
	case *StopOn:
		if u != nil {
			return *u
		}
	default:
		return until
	}
	return Forever{}
}
