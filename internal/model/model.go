package model

import (
	"fmt"
	"strings"
	"time"
)

// Event is a single concrete calendar entry.
//
// Timed events cover [Start, End). All-day events cover whole dates and
// are stored from local midnight of the first date to local midnight
// after the last date, in the owning calendar's timezone.
type Event struct {
	Subject     string
	Description string
	Location    string

	// Public is the visibility flag; false means private.
	Public bool
	AllDay bool

	Start time.Time
	End   time.Time

	// SeriesID links an occurrence to the RecurringEvent that produced it.
	// Empty for standalone events.
	SeriesID string
}

// Key is the lookup identity of an event: subject plus start instant.
type Key struct {
	Subject string
	Start   int64
}

// KeyOf builds the lookup key for (subject, start).
func KeyOf(subject string, start time.Time) Key {
	return Key{Subject: subject, Start: start.UnixNano()}
}

// NewEvent returns a public timed event after validating its interval.
func NewEvent(subject string, start, end time.Time) (*Event, error) {
	ev := &Event{
		Subject: subject,
		Start:   start,
		End:     end,
		Public:  true,
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// NewAllDayEvent returns a public all-day event covering first..last
// inclusive. The dates are read in first's location.
func NewAllDayEvent(subject string, first, last time.Time) (*Event, error) {
	loc := first.Location()
	start := StartOfDay(first)
	lastDay := StartOfDay(last.In(loc))
	if lastDay.Before(start) {
		return nil, fmt.Errorf("%w: all-day event %q ends on %s before it starts on %s",
			ErrInvalidEvent, subject, lastDay.Format(DateLayout), start.Format(DateLayout))
	}
	ev := &Event{
		Subject: subject,
		Start:   start,
		End:     NextDay(lastDay),
		Public:  true,
		AllDay:  true,
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// Validate checks the event invariants: non-empty subject and End after
// Start. All-day events must additionally sit on local midnights.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidEvent)
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("%w: %q has no start or end", ErrInvalidEvent, e.Subject)
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("%w: %q ends at %s, not after its start %s",
			ErrInvalidEvent, e.Subject, e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	if e.AllDay && (!e.Start.Equal(StartOfDay(e.Start)) || !e.End.Equal(StartOfDay(e.End))) {
		return fmt.Errorf("%w: all-day %q must start and end at midnight", ErrInvalidEvent, e.Subject)
	}
	return nil
}

// Key returns the event's lookup identity.
func (e Event) Key() Key {
	return KeyOf(e.Subject, e.Start)
}

func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Overlaps reports whether the half-open intervals of e and o intersect.
// Touching intervals do not overlap.
func (e Event) Overlaps(o Event) bool {
	return e.Start.Before(o.End) && o.Start.Before(e.End)
}

// Intersects reports whether e overlaps the half-open window [from, to).
func (e Event) Intersects(from, to time.Time) bool {
	return e.Start.Before(to) && from.Before(e.End)
}

// Contains reports whether t falls inside the event. Timed events include
// both endpoints; all-day events cover their dates only, so the midnight
// that closes the last date is outside.
func (e Event) Contains(t time.Time) bool {
	if t.Before(e.Start) {
		return false
	}
	if e.AllDay {
		return t.Before(e.End)
	}
	return !t.After(e.End)
}

// LastDate is the final calendar date touched by the event. For all-day
// events that is the day before End.
func (e Event) LastDate() time.Time {
	if e.AllDay {
		return e.End.AddDate(0, 0, -1)
	}
	return StartOfDay(e.End)
}

// In re-expresses the event's instants in loc. All-day events keep their
// dates and are re-anchored on loc's midnights.
func (e Event) In(loc *time.Location) Event {
	if e.AllDay {
		e.Start = WithDate(e.Start, loc)
		e.End = WithDate(e.End, loc)
		return e
	}
	e.Start = e.Start.In(loc)
	e.End = e.End.In(loc)
	return e
}

func (e Event) String() string {
	if e.AllDay {
		return fmt.Sprintf("%s (all day %s..%s)", e.Subject, e.Start.Format(DateLayout), e.LastDate().Format(DateLayout))
	}
	return fmt.Sprintf("%s (%s..%s)", e.Subject, e.Start.Format(DateTimeLayout), e.End.Format(DateTimeLayout))
}
