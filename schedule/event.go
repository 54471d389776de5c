package schedule

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind tells whether an event is pinned to an instant or only to a day.
type EventKind int

const (
	// DateOnly events may happen at any time during Date.
	DateOnly EventKind = iota
	// Timestamp events happen at Time.
	Timestamp
)

func (k EventKind) String() string {
	if k == Timestamp {
		return "time"
	}
	return "date"
}

// isoLayout matches the millisecond UTC timestamps the calling layer stores.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Event is a single scheduled dose. Index refers back to the TimeSpec in
// RecurrenceRule.Times that produced it.
type Event struct {
	Index int
	Kind  EventKind
	Date  Date      // set when Kind == DateOnly
	Time  time.Time // set when Kind == Timestamp
}

// SortKey is the instant used to order events: date-only events sort at the very
// end of their day in loc.
func (e Event) SortKey(loc *time.Location) time.Time {
	if e.Kind == DateOnly {
		return e.Date.EndOfDay(loc)
	}
	return e.Time
}

func (e Event) String() string {
	if e.Kind == DateOnly {
		return fmt.Sprintf("#%d %s", e.Index, e.Date)
	}
	return fmt.Sprintf("#%d %s", e.Index, e.Time.UTC().Format(isoLayout))
}

type wireEvent struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Date  string `json:"date"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{Index: e.Index, Type: e.Kind.String()}
	if e.Kind == DateOnly {
		w.Date = e.Date.String()
	} else {
		w.Date = e.Time.UTC().Format(isoLayout)
	}
	return json.Marshal(w)
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case "date":
		d, err := ParseDate(w.Date)
		if err != nil {
			return err
		}
		*e = Event{Index: w.Index, Kind: DateOnly, Date: d}
	case "time":
		t, err := time.Parse(time.RFC3339Nano, w.Date)
		if err != nil {
			return fmt.Errorf("invalid event time %q: %w", w.Date, err)
		}
		*e = Event{Index: w.Index, Kind: Timestamp, Time: t.UTC()}
	default:
		return fmt.Errorf("unknown event type %q", w.Type)
	}
	return nil
}
