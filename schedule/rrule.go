package schedule

import (
	"fmt"
	"strings"

	"github.com/teambition/rrule-go"
)

var freqUnits = map[rrule.Frequency]Unit{
	rrule.DAILY:   Day,
	rrule.WEEKLY:  Week,
	rrule.MONTHLY: Month,
	rrule.YEARLY:  Year,
}

// FrequencyFromRRule converts an RFC 5545 recurrence rule such as
// "FREQ=WEEKLY;INTERVAL=2" into a Frequency. Only FREQ and INTERVAL can be
// expressed; rules using BY* parts, COUNT or UNTIL are rejected.
func FrequencyFromRRule(s string) (Frequency, error) {
	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(s), "RRULE:"))
	if err != nil {
		return Frequency{}, fmt.Errorf("parse rrule %q: %w", s, err)
	}

	unit, ok := freqUnits[opt.Freq]
	if !ok {
		return Frequency{}, fmt.Errorf("unsupported rrule frequency %v", opt.Freq)
	}
	if opt.Count != 0 || !opt.Until.IsZero() {
		return Frequency{}, fmt.Errorf("rrule %q: COUNT and UNTIL belong in the until policy", s)
	}
	if len(opt.Byweekday) > 0 || len(opt.Bymonthday) > 0 || len(opt.Bymonth) > 0 ||
		len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return Frequency{}, fmt.Errorf("rrule %q: BY* rules are not supported", s)
	}

	n := opt.Interval
	if n == 0 {
		n = 1
	}
	return Frequency{N: n, Unit: unit}, nil
}

// RRule returns the RFC 5545 form of the primary cycle. Exclusions have no RRULE
// equivalent and are left out.
func (f Frequency) RRule() string {
	opt := rrule.ROption{Freq: rrule.DAILY, Interval: max(f.N, 1)}
	for freq, unit := range freqUnits {
		if unit == f.Unit {
			opt.Freq = freq
		}
	}
	return opt.RRuleString()
}
