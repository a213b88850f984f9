// Package copier duplicates events from the active calendar into another
// calendar of the same registry, translating wall-clock times between the
// two calendars' zones.
package copier

import (
	"errors"
	"fmt"
	"time"

	"vcal/internal/calendar"
	appLog "vcal/internal/log"
	"vcal/internal/model"
	"vcal/internal/tz"
)

// Outcome classifies a copy result.
type Outcome int

const (
	OutcomeNoEvents Outcome = iota
	OutcomeComplete
	OutcomePartial
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomePartial:
		return "partial"
	case OutcomeFailed:
		return "failed"
	default:
		return "no events"
	}
}

// Result counts what a copy did. Per-event conflicts never abort a batch;
// they are counted here.
type Result struct {
	Target    string
	Found     int
	Copied    int
	Conflicts int
}

func (r Result) Outcome() Outcome {
	switch {
	case r.Found == 0:
		return OutcomeNoEvents
	case r.Copied == r.Found:
		return OutcomeComplete
	case r.Copied == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

func (r Result) String() string {
	switch r.Outcome() {
	case OutcomeNoEvents:
		return "no events found to copy"
	case OutcomeComplete:
		return fmt.Sprintf("copied %d event(s) to %s", r.Copied, r.Target)
	default:
		return fmt.Sprintf("copied %d of %d event(s) to %s; %d conflicted", r.Copied, r.Found, r.Target, r.Conflicts)
	}
}

// Engine copies out of the registry's active calendar.
type Engine struct {
	reg   *calendar.Registry
	zones *tz.Service
}

func New(reg *calendar.Registry) *Engine {
	return &Engine{reg: reg, zones: reg.Zones()}
}

// CopyEvent copies the active calendar's event (subject, sourceStart) to
// target. targetStart is used as given on the target calendar's wall clock;
// the copy keeps the original duration. A conflict in the target fails with
// ErrConflictingEvent.
func (e *Engine) CopyEvent(subject string, sourceStart time.Time, target string, targetStart time.Time) (Result, error) {
	src, dst, err := e.calendars(target)
	if err != nil {
		return Result{Target: target}, err
	}
	ev, ok := src.FindEvent(subject, sourceStart)
	if !ok {
		return Result{Target: target}, fmt.Errorf("%w: %q at %s in %s", model.ErrEventNotFound,
			subject, sourceStart.Format(model.DateTimeLayout), src.Name())
	}

	res := Result{Target: dst.Name(), Found: 1}
	start := model.WallClock(targetStart, dst.Location())
	if ev.AllDay {
		start = model.StartOfDay(start)
	}
	copied := detach(ev)
	copied.Start = start
	copied.End = start.Add(ev.Duration())
	if ev.AllDay {
		copied.End = start.AddDate(0, 0, model.DaysBetween(ev.Start, ev.End))
	}

	if _, err := dst.AddEvent(&copied, true); err != nil {
		if errors.Is(err, model.ErrConflictingEvent) {
			res.Conflicts++
		}
		return res, err
	}
	res.Copied++
	appLog.Debug("copier: event copied", "subject", subject, "from", src.Name(), "to", dst.Name(),
		"start", copied.Start.Format(time.RFC3339))
	return res, nil
}

// CopyEventsOnDate copies every active-calendar event touching sourceDate
// to target, moved by the day offset between sourceDate and targetDate.
// Timed events are translated from the source zone to the target zone;
// all-day events only move by date.
func (e *Engine) CopyEventsOnDate(sourceDate time.Time, target string, targetDate time.Time) (Result, error) {
	src, dst, err := e.calendars(target)
	if err != nil {
		return Result{Target: target}, err
	}
	events := src.EventsOnDate(sourceDate)
	return e.copyAll(src, dst, events, model.DaysBetween(sourceDate, targetDate))
}

// CopyEventsInRange copies every active-calendar event touching the
// inclusive range from..to. Each event lands on targetStart plus its own
// day distance from from, so spacing inside the range is kept. Zones are
// translated as in CopyEventsOnDate.
func (e *Engine) CopyEventsInRange(from, to time.Time, target string, targetStart time.Time) (Result, error) {
	src, dst, err := e.calendars(target)
	if err != nil {
		return Result{Target: target}, err
	}
	events, err := src.EventsInRange(from, to)
	if err != nil {
		return Result{Target: dst.Name()}, err
	}
	// An event d days after from lands d days after targetStart, which is
	// the same shift for every event in the range.
	return e.copyAll(src, dst, events, model.DaysBetween(from, targetStart))
}

func (e *Engine) copyAll(src, dst *calendar.Calendar, events []model.Event, days int) (Result, error) {
	res := Result{Target: dst.Name(), Found: len(events)}
	for _, ev := range events {
		copied, err := e.translate(ev, days, src, dst)
		if err != nil {
			return res, err
		}
		ok, err := dst.AddEvent(&copied, true)
		switch {
		case errors.Is(err, model.ErrConflictingEvent):
			res.Conflicts++
			appLog.Debug("copier: conflict in target", "subject", ev.Subject, "to", dst.Name(),
				"start", copied.Start.Format(time.RFC3339))
		case err != nil:
			return res, err
		case ok:
			res.Copied++
		}
	}
	appLog.Debug("copier: batch finished", "from", src.Name(), "to", dst.Name(),
		"found", res.Found, "copied", res.Copied, "conflicts", res.Conflicts)
	return res, nil
}

// translate shifts ev by days on the source wall clock and re-expresses it
// in the target zone. Duration is preserved.
func (e *Engine) translate(ev model.Event, days int, src, dst *calendar.Calendar) (model.Event, error) {
	copied := detach(ev)
	if ev.AllDay {
		copied.Start = model.WithDate(ev.Start.AddDate(0, 0, days), dst.Location())
		copied.End = model.WithDate(ev.End.AddDate(0, 0, days), dst.Location())
		return copied, nil
	}

	shifted := ev.Start.AddDate(0, 0, days)
	start, err := e.zones.Convert(shifted, src.Timezone(), dst.Timezone())
	if err != nil {
		return model.Event{}, err
	}
	copied.Start = start
	copied.End = start.Add(ev.Duration())
	return copied, nil
}

func (e *Engine) calendars(target string) (*calendar.Calendar, *calendar.Calendar, error) {
	dst, err := e.reg.Get(target)
	if err != nil {
		return nil, nil, err
	}
	src, err := e.reg.Active()
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// detach drops series membership; the target calendar does not own the
// source's recurring definitions.
func detach(ev model.Event) model.Event {
	ev.SeriesID = ""
	return ev
}
