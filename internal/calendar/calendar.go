// Package calendar holds named, timezone-tagged event stores and the
// registry that owns them.
//
// Calendars and the Registry are not safe for concurrent use. Callers that
// share them across goroutines must serialise access themselves.
package calendar

import (
	"fmt"
	"slices"
	"time"

	appLog "vcal/internal/log"
	"vcal/internal/model"
	"vcal/internal/recur"
)

// Calendar stores events for one timezone. Events produced by a recurring
// series are stored individually and are the source of truth for queries
// and conflicts; the series definitions are kept for introspection.
type Calendar struct {
	name string
	loc  *time.Location

	events []*model.Event
	index  map[model.Key]*model.Event

	series   []*model.RecurringEvent
	seriesID map[string]*model.RecurringEvent

	expand recur.Options
}

// New returns an empty calendar. Most callers go through Registry.Create,
// which also validates the name and zone.
func New(name string, loc *time.Location) *Calendar {
	return &Calendar{
		name:     name,
		loc:      loc,
		index:    make(map[model.Key]*model.Event),
		seriesID: make(map[string]*model.RecurringEvent),
	}
}

func (c *Calendar) Name() string { return c.name }

// Timezone is the IANA identifier of the calendar's zone.
func (c *Calendar) Timezone() string { return c.loc.String() }

func (c *Calendar) Location() *time.Location { return c.loc }

// Len is the number of stored events.
func (c *Calendar) Len() int { return len(c.events) }

// Events returns copies of all stored events in insertion order.
func (c *Calendar) Events() []model.Event {
	out := make([]model.Event, len(c.events))
	for i, ev := range c.events {
		out[i] = *ev
	}
	return out
}

// Series returns the registered recurring definitions in registration order.
func (c *Calendar) Series() []*model.RecurringEvent {
	return slices.Clone(c.series)
}

// SeriesByID looks up a registered recurring definition.
func (c *Calendar) SeriesByID(id string) (*model.RecurringEvent, bool) {
	r, ok := c.seriesID[id]
	return r, ok
}

// AddEvent inserts ev if it does not overlap a stored event.
//
// A malformed event fails with ErrInvalidEvent. On overlap the store is left
// untouched and the result depends on autoDecline: true fails with
// ErrConflictingEvent, false reports (false, nil).
func (c *Calendar) AddEvent(ev *model.Event, autoDecline bool) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}
	candidate := ev.In(c.loc)
	if candidate.SeriesID != "" {
		if _, ok := c.seriesID[candidate.SeriesID]; !ok {
			return false, fmt.Errorf("%w: %q refers to unknown series %q", model.ErrInvalidEvent, candidate.Subject, candidate.SeriesID)
		}
	}

	if existing := c.conflict(candidate, nil); existing != nil {
		appLog.Debug("calendar: event declined",
			"calendar", c.name,
			"subject", candidate.Subject,
			"conflicts_with", existing.Subject,
			"auto_decline", autoDecline,
		)
		if autoDecline {
			return false, fmt.Errorf("%w: %q overlaps %q at %s", model.ErrConflictingEvent,
				candidate.Subject, existing.Subject, existing.Start.Format(model.DateTimeLayout))
		}
		return false, nil
	}

	c.insert(candidate)
	appLog.Debug("calendar: event added", "calendar", c.name, "subject", candidate.Subject,
		"start", candidate.Start.Format(time.RFC3339))
	return true, nil
}

// AddRecurringEvent expands r and stores its occurrences.
//
// Every occurrence is checked before anything is stored. With autoDecline a
// single conflict fails the whole series with ErrConflictingEvent and
// nothing is stored. Without it, conflicting occurrences are skipped and the
// rest are stored. The series is registered whenever the call succeeds. The
// number of stored occurrences is returned.
func (c *Calendar) AddRecurringEvent(r *model.RecurringEvent, autoDecline bool) (int, error) {
	if r == nil {
		return 0, fmt.Errorf("%w: recurring event is nil", model.ErrInvalidEvent)
	}
	if _, dup := c.seriesID[r.ID()]; dup {
		return 0, fmt.Errorf("%w: series %q is already registered", model.ErrInvalidEvent, r.ID())
	}

	occurrences, err := recur.ExpandWith(r, c.expand)
	if err != nil {
		return 0, err
	}

	accepted := make([]model.Event, 0, len(occurrences))
	for _, occ := range occurrences {
		occ = occ.In(c.loc)
		if existing := c.conflict(occ, nil); existing != nil {
			if autoDecline {
				return 0, fmt.Errorf("%w: %q on %s overlaps %q", model.ErrConflictingEvent,
					occ.Subject, occ.Start.Format(model.DateLayout), existing.Subject)
			}
			appLog.Debug("calendar: occurrence skipped", "calendar", c.name, "subject", occ.Subject,
				"date", occ.Start.Format(model.DateLayout), "conflicts_with", existing.Subject)
			continue
		}
		accepted = append(accepted, occ)
	}

	c.series = append(c.series, r)
	c.seriesID[r.ID()] = r
	for _, occ := range accepted {
		c.insert(occ)
	}

	appLog.Debug("calendar: series added",
		"calendar", c.name,
		"subject", r.Subject(),
		"series", r.ID(),
		"stored", len(accepted),
		"skipped", len(occurrences)-len(accepted),
	)
	return len(accepted), nil
}

// conflict returns a stored event overlapping candidate, ignoring events in
// skip.
func (c *Calendar) conflict(candidate model.Event, skip map[*model.Event]bool) *model.Event {
	for _, ev := range c.events {
		if skip[ev] {
			continue
		}
		if ev.Overlaps(candidate) {
			return ev
		}
	}
	return nil
}

func (c *Calendar) insert(ev model.Event) {
	stored := &ev
	c.events = append(c.events, stored)
	c.index[stored.Key()] = stored
}

func (c *Calendar) reindex() {
	c.index = make(map[model.Key]*model.Event, len(c.events))
	for _, ev := range c.events {
		c.index[ev.Key()] = ev
	}
}

// relocate moves the calendar to loc, keeping each event's wall-clock
// reading (and each all-day event's dates).
func (c *Calendar) relocate(loc *time.Location) {
	for _, ev := range c.events {
		if ev.AllDay {
			ev.Start = model.WithDate(ev.Start, loc)
			ev.End = model.WithDate(ev.End, loc)
			continue
		}
		ev.Start = model.WallClock(ev.Start, loc)
		ev.End = model.WallClock(ev.End, loc)
	}
	c.loc = loc
	c.reindex()
}
