// Package ics exports generated dose events as an iCalendar document.
package ics

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cyp0633/doseplan/schedule"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const (
	// DefaultProdID identifies documents written by this package.
	DefaultProdID = "-//Doseplan//Go Dose Planner//EN"

	PropIndex = "X-DOSEPLAN-INDEX"
	PropRRule = "X-DOSEPLAN-RRULE"
	// PropCalendarTimeZone names the patient's timezone on the VCALENDAR.
	PropCalendarTimeZone = "X-WR-TIMEZONE"

	dateFormat = "20060102"
)

// namespace for event UIDs, derived once from a fixed URL
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/cyp0633/doseplan"))

// Options controls how events are rendered.
type Options struct {
	ScheduleID string
	// Summary of every VEVENT, "Dose" when empty.
	Summary string
	// Location is the patient's timezone, advertised on the calendar.
	Location  *time.Location
	Frequency *schedule.Frequency
	// Now stamps DTSTAMP; time.Now when nil.
	Now    func() time.Time
	ProdID string
}

// ToCalendar builds a calendar with one VEVENT per event, in order.
func ToCalendar(events []schedule.Event, opts Options) *ical.Calendar {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	prodID := opts.ProdID
	if prodID == "" {
		prodID = DefaultProdID
	}
	summary := opts.Summary
	if summary == "" {
		summary = "Dose"
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	if opts.Location != nil {
		setRaw(cal.Props, PropCalendarTimeZone, opts.Location.String())
	}

	stamp := now().UTC()
	for _, e := range events {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, EventUID(opts.ScheduleID, e))
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetText(ical.PropSummary, summary)
		setRaw(event.Props, PropIndex, strconv.Itoa(e.Index))
		if opts.Frequency != nil {
			setRaw(event.Props, PropRRule, opts.Frequency.RRule())
		}

		switch e.Kind {
		case schedule.DateOnly:
			setDate(event, ical.PropDateTimeStart, e.Date)
			setDate(event, ical.PropDateTimeEnd, e.Date.AddDays(1))
		default:
			event.Props.SetDateTime(ical.PropDateTimeStart, e.Time.UTC())
		}

		cal.Children = append(cal.Children, event.Component)
	}
	return cal
}

// ErrNoEvents is returned when there is nothing to export. iCalendar requires at
// least one component, so no document is written.
var ErrNoEvents = errors.New("no events to export")

// Encode writes events as an iCalendar document.
func Encode(w io.Writer, events []schedule.Event, opts Options) error {
	return EncodeCalendar(w, ToCalendar(events, opts))
}

// EncodeCalendar writes cal, failing with ErrNoEvents when it has no components.
func EncodeCalendar(w io.Writer, cal *ical.Calendar) error {
	if len(cal.Children) == 0 {
		return ErrNoEvents
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// Decode reads back the events of a document written by Encode.
func Decode(r io.Reader) ([]schedule.Event, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}

	vevents := cal.Events()
	events := make([]schedule.Event, 0, len(vevents))
	for i, ve := range vevents {
		e, err := decodeEvent(ve)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// EventUID is stable across exports of the same schedule and event.
func EventUID(scheduleID string, e schedule.Event) string {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%s/%d/%s", scheduleID, e.Index, e))).String()
}

func decodeEvent(ve ical.Event) (schedule.Event, error) {
	var e schedule.Event

	if prop := ve.Props.Get(PropIndex); prop != nil {
		idx, err := strconv.Atoi(prop.Value)
		if err != nil {
			return e, fmt.Errorf("invalid %s: %w", PropIndex, err)
		}
		e.Index = idx
	}

	start := ve.Props.Get(ical.PropDateTimeStart)
	if start == nil {
		return e, fmt.Errorf("missing DTSTART")
	}

	if start.ValueType() == ical.ValueDate {
		t, err := time.Parse(dateFormat, start.Value)
		if err != nil {
			return e, fmt.Errorf("invalid DTSTART date: %w", err)
		}
		e.Kind = schedule.DateOnly
		e.Date = schedule.DateOf(t)
		return e, nil
	}

	t, err := start.DateTime(time.UTC)
	if err != nil {
		return e, fmt.Errorf("invalid DTSTART: %w", err)
	}
	e.Kind = schedule.Timestamp
	e.Time = t.UTC()
	return e, nil
}

// setRaw stores value as is. SetText would add VALUE=TEXT to X- properties and
// escape the ';' separators of RRULEs.
func setRaw(props ical.Props, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	props.Set(prop)
}

func setDate(event *ical.Event, name string, d schedule.Date) {
	prop := ical.NewProp(name)
	prop.SetValueType(ical.ValueDate)
	prop.Value = d.Start(time.UTC).Format(dateFormat)
	event.Props.Set(prop)
}
