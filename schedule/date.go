package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the normalized date for y-m-d (so month 13 rolls into the next year).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a strictly formatted YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is like ParseDate but panics on error. Intended for tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Start returns local midnight of d in loc.
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last representable instant of d in loc.
func (d Date) EndOfDay(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}

// At returns the instant of d at the given wall clock in loc.
func (d Date) At(c ClockTime, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

func (d Date) utc() time.Time {
	return d.Start(time.UTC)
}

// days returns the number of days since 1970-01-01.
func (d Date) days() int {
	return int(d.utc().Unix() / 86400)
}

func (d Date) Compare(o Date) int {
	a, b := d.days(), o.days()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }
func (d Date) Equal(o Date) bool  { return d.Compare(o) == 0 }

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// addMonths adds n months, clamping the day to the last day of the target month.
func (d Date) addMonths(n int) Date {
	first := NewDate(d.Year, d.Month+time.Month(n), 1)
	last := daysIn(first.Year, first.Month)
	day := d.Day
	if day > last {
		day = last
	}
	return Date{Year: first.Year, Month: first.Month, Day: day}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Add moves d by n units. Month and year steps clamp to the end of shorter months.
func (d Date) Add(u Unit, n int) Date {
	switch u {
	case Week:
		return d.AddDays(7 * n)
	case Month:
		return d.addMonths(n)
	case Year:
		return d.addMonths(12 * n)
	default:
		return d.AddDays(n)
	}
}

// Diff returns the signed number of whole units from 'from' to 'to', truncated toward zero.
func Diff(from, to Date, u Unit) int {
	switch u {
	case Week:
		return (to.days() - from.days()) / 7
	case Month:
		return monthDiff(from, to)
	case Year:
		return monthDiff(from, to) / 12
	default:
		return to.days() - from.days()
	}
}

func monthDiff(from, to Date) int {
	m := (to.Year-from.Year)*12 + int(to.Month-from.Month)
	anchor := from.addMonths(m)
	switch {
	case m > 0 && to.Before(anchor):
		m--
	case m < 0 && to.After(anchor):
		m++
	}
	return m
}

// mod is the mathematical modulo: the result is always in [0, m).
func mod(x, m int) int {
	return ((x % m) + m) % m
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(x, m int) int {
	q := x / m
	if (x%m != 0) && ((x < 0) != (m < 0)) {
		q--
	}
	return q
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
