package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"vcal/internal/calendar"
	appLog "vcal/internal/log"
	"vcal/internal/model"
	"vcal/internal/recur"
)

// ImportOptions bounds expansion of rules that cannot be stored as a
// recurring series.
type ImportOptions struct {
	// From and To delimit the inclusive window in which such rules are
	// expanded into standalone events.
	From time.Time
	To   time.Time

	// MaxOccurrences caps expansion per VEVENT. Zero uses the recur default.
	MaxOccurrences int
}

// ImportResult counts what Import stored. Conflicts are occurrences or
// events declined because they overlap something already in the calendar.
type ImportResult struct {
	Events    int
	Series    int
	Conflicts int
	Skipped   int
}

func (r ImportResult) String() string {
	return fmt.Sprintf("%d event(s), %d series, %d conflict(s), %d skipped", r.Events, r.Series, r.Conflicts, r.Skipped)
}

// Import adds parsed VEVENTs to c without auto-decline, so overlapping
// entries are counted instead of failing the import.
//
// A VEVENT whose RRULE is a bounded DAILY or WEEKLY rule with interval 1,
// plain BYDAY weekdays and no EXDATE becomes a recurring series. Any other
// rule is expanded inside the options window into standalone events.
// RECURRENCE-ID overrides are skipped.
func Import(c *calendar.Calendar, events []ParsedEvent, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	if c == nil {
		return res, errors.New("import: calendar is nil")
	}
	if opts.To.Before(opts.From) {
		return res, fmt.Errorf("%w: import window ends before it starts", model.ErrInvalidEvent)
	}

	for _, pe := range events {
		if pe.RecurrenceID != nil {
			res.Skipped++
			appLog.Debug("ics import: override skipped", "uid", pe.UID, "recurrence_id", pe.RecurrenceID.Format(time.RFC3339))
			continue
		}
		switch {
		case pe.RawRRule == "":
			res.add(addSingle(c, toEvent(pe, pe.Start, pe.End)))
		default:
			if series, ok := toSeries(pe, c.Location()); ok {
				importSeries(c, series, pe, opts, &res)
				continue
			}
			importExpanded(c, pe, opts, &res)
		}
	}

	appLog.Info("ics import completed", "calendar", c.Name(), "events", res.Events, "series", res.Series,
		"conflicts", res.Conflicts, "skipped", res.Skipped)
	return res, nil
}

type addOutcome int

const (
	added addOutcome = iota
	declined
	rejected
)

func (r *ImportResult) add(o addOutcome) {
	switch o {
	case added:
		r.Events++
	case declined:
		r.Conflicts++
	default:
		r.Skipped++
	}
}

func addSingle(c *calendar.Calendar, ev model.Event) addOutcome {
	ok, err := c.AddEvent(&ev, false)
	switch {
	case err != nil:
		appLog.Warn("ics import: event rejected", "calendar", c.Name(), "subject", ev.Subject, "err", err.Error())
		return rejected
	case !ok:
		return declined
	default:
		return added
	}
}

func importSeries(c *calendar.Calendar, series *model.RecurringEvent, pe ParsedEvent, opts ImportOptions, res *ImportResult) {
	occurrences, err := recur.ExpandWith(series, recur.Options{MaxOccurrences: opts.MaxOccurrences})
	if err != nil {
		res.Skipped++
		appLog.Warn("ics import: series rejected", "uid", pe.UID, "err", err.Error())
		return
	}
	stored, err := c.AddRecurringEvent(series, false)
	if err != nil {
		res.Skipped++
		appLog.Warn("ics import: series rejected", "uid", pe.UID, "err", err.Error())
		return
	}
	res.Series++
	res.Events += stored
	res.Conflicts += len(occurrences) - stored
}

func importExpanded(c *calendar.Calendar, pe ParsedEvent, opts ImportOptions, res *ImportResult) {
	r, err := ruleFrom(pe.RawRRule, pe.Start)
	if err != nil {
		res.Skipped++
		appLog.Error("ics import: bad RRULE", err, "uid", pe.UID, "rrule", pe.RawRRule)
		return
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range pe.ExDates {
		set.ExDate(ex.In(pe.Start.Location()))
	}

	loc := pe.Start.Location()
	starts := set.Between(opts.From.In(loc), opts.To.In(loc), true)
	limit := opts.MaxOccurrences
	if limit <= 0 {
		limit = recur.DefaultMaxOccurrences
	}
	if len(starts) > limit {
		appLog.Warn("ics import: expansion truncated", "uid", pe.UID, "occurrences", len(starts), "cap", limit)
		starts = starts[:limit]
	}

	days := model.DaysBetween(pe.Start, pe.End)
	dur := pe.End.Sub(pe.Start)
	for _, s := range starts {
		end := s.Add(dur)
		if pe.AllDay {
			s = model.StartOfDay(s)
			end = s.AddDate(0, 0, days)
		}
		res.add(addSingle(c, toEvent(pe, s, end)))
	}
}

// ruleFrom parses an RRULE value anchored on the VEVENT's DTSTART.
func ruleFrom(raw string, start time.Time) (*rrule.RRule, error) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = start
	return rrule.NewRRule(*opt)
}

func toEvent(pe ParsedEvent, start, end time.Time) model.Event {
	return model.Event{
		Subject:     pe.Summary,
		Description: pe.Description,
		Location:    pe.Location,
		Public:      pe.Public,
		AllDay:      pe.AllDay,
		Start:       start,
		End:         end,
	}
}

// toSeries maps pe onto a RecurringEvent when its rule says exactly what
// a RecurringEvent can: a daily walk filtered by weekdays, bounded by a
// count or an until-date.
func toSeries(pe ParsedEvent, loc *time.Location) (*model.RecurringEvent, bool) {
	if len(pe.ExDates) > 0 {
		return nil, false
	}
	opt, err := rrule.StrToROption(pe.RawRRule)
	if err != nil {
		return nil, false
	}
	if opt.Freq != rrule.DAILY && opt.Freq != rrule.WEEKLY {
		return nil, false
	}
	if opt.Interval > 1 || (opt.Count == 0 && opt.Until.IsZero()) {
		return nil, false
	}
	if len(opt.Bysetpos)+len(opt.Bymonth)+len(opt.Bymonthday)+len(opt.Byyearday)+len(opt.Byweekno)+
		len(opt.Byhour)+len(opt.Byminute)+len(opt.Bysecond) > 0 {
		return nil, false
	}

	start := pe.Start.In(loc)
	end := pe.End.In(loc)
	if pe.AllDay {
		start = model.WithDate(pe.Start, loc)
		if model.DaysBetween(pe.Start, pe.End) != 1 {
			return nil, false
		}
	}

	var days []time.Weekday
	switch {
	case len(opt.Byweekday) > 0:
		for _, w := range opt.Byweekday {
			if w.N() != 0 {
				return nil, false
			}
			days = append(days, time.Weekday((w.Day()+1)%7))
		}
	case opt.Freq == rrule.WEEKLY:
		days = []time.Weekday{start.Weekday()}
	default:
		days = []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		}
	}

	b := model.NewRecurringEvent(pe.Summary).
		WithID(pe.UID).
		Description(pe.Description).
		Location(pe.Location).
		On(days...)
	if !pe.Public {
		b = b.Private()
	}
	if pe.AllDay {
		b = b.AllDay(start)
	} else {
		b = b.Timed(start, end)
	}
	if opt.Count > 0 {
		b = b.Count(opt.Count)
	} else {
		b = b.Until(untilDate(pe.RawRRule, opt.Until, loc))
	}

	series, err := b.Build()
	if err != nil {
		appLog.Debug("ics import: rule kept as expansion", "uid", pe.UID, "reason", err.Error())
		return nil, false
	}
	return series, true
}

// untilDate reads the calendar date of an UNTIL bound. A DATE-form UNTIL
// carries no zone, so its date is taken as written.
func untilDate(raw string, until time.Time, loc *time.Location) time.Time {
	for _, part := range strings.Split(strings.ToUpper(raw), ";") {
		if v, ok := strings.CutPrefix(part, "UNTIL="); ok && !strings.Contains(v, "T") {
			return model.WithDate(until, loc)
		}
	}
	return model.WithDate(until.In(loc), loc)
}
