// Package recur expands RecurringEvent patterns into concrete occurrences.
package recur

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "vcal/internal/log"
	"vcal/internal/model"
)

// DefaultMaxOccurrences applies when Options.MaxOccurrences is zero.
const DefaultMaxOccurrences = 5000

// Options controls expansion.
type Options struct {
	// MaxOccurrences caps the number of occurrences a single series may
	// produce. If zero, DefaultMaxOccurrences is used.
	MaxOccurrences int
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Rule builds the rrule equivalent of the pattern: a daily walk from the
// first date keeping days whose weekday is in the set, bounded by COUNT or
// by the end of the inclusive until-date.
func Rule(r *model.RecurringEvent) (*rrule.RRule, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: recurring event is nil", model.ErrInvalidEvent)
	}
	days := r.Weekdays()
	byDay := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		byDay = append(byDay, rruleWeekdays[d])
	}

	opt := rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   r.Start(),
		Byweekday: byDay,
	}
	if r.Count() > 0 {
		opt.Count = r.Count()
	} else {
		u := r.Until()
		opt.Until = time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, r.Start().Location())
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: recurring %q: %v", model.ErrInvalidEvent, r.Subject(), err)
	}
	return rule, nil
}

// Expand returns the occurrences of r in date order using default options.
func Expand(r *model.RecurringEvent) ([]model.Event, error) {
	return ExpandWith(r, Options{})
}

// ExpandWith returns the occurrences of r in date order. The result only
// depends on r, so repeated calls yield the same sequence. A series that
// would exceed the occurrence cap is rejected rather than truncated.
func ExpandWith(r *model.RecurringEvent, opts Options) ([]model.Event, error) {
	limit := opts.MaxOccurrences
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}

	rule, err := Rule(r)
	if err != nil {
		return nil, err
	}
	if r.Count() > limit {
		return nil, fmt.Errorf("%w: recurring %q asks for %d occurrences, limit is %d",
			model.ErrInvalidEvent, r.Subject(), r.Count(), limit)
	}

	out := make([]model.Event, 0)
	next := rule.Iterator()
	for {
		t, ok := next()
		if !ok {
			break
		}
		if len(out) == limit {
			appLog.Error("recur: series exceeds occurrence cap",
				errors.New("max occurrences reached"),
				"subject", r.Subject(),
				"series", r.ID(),
				"cap", limit,
			)
			return nil, fmt.Errorf("%w: recurring %q produces more than %d occurrences",
				model.ErrInvalidEvent, r.Subject(), limit)
		}
		out = append(out, r.OccurrenceOn(t))
	}

	appLog.Debug("recur: expanded series", "subject", r.Subject(), "series", r.ID(), "occurrences", len(out))
	return out, nil
}
