package calendar

import (
	"fmt"
	"slices"
	"time"

	"vcal/internal/model"
)

// EventsOnDate returns every event intersecting the given calendar date,
// ordered by start. The date's year/month/day are read in its own location
// and the day is taken in the calendar's zone. Multi-day events appear on
// every date they cover.
func (c *Calendar) EventsOnDate(date time.Time) []model.Event {
	day := model.WithDate(date, c.loc)
	return c.between(day, model.NextDay(day))
}

// EventsInRange returns every event intersecting the inclusive date range
// from..to, ordered by start.
func (c *Calendar) EventsInRange(from, to time.Time) ([]model.Event, error) {
	first := model.WithDate(from, c.loc)
	last := model.WithDate(to, c.loc)
	if last.Before(first) {
		return nil, fmt.Errorf("%w: range ends %s before it starts %s",
			model.ErrInvalidEvent, last.Format(model.DateLayout), first.Format(model.DateLayout))
	}
	return c.between(first, model.NextDay(last)), nil
}

// AllEvents returns every stored event ordered by start.
func (c *Calendar) AllEvents() []model.Event {
	out := c.Events()
	sortByStart(out)
	return out
}

// IsBusy reports whether some event contains t. Timed events count both
// endpoints as busy.
func (c *Calendar) IsBusy(t time.Time) bool {
	for _, ev := range c.events {
		if ev.Contains(t) {
			return true
		}
	}
	return false
}

// FindEvent looks up the event with exactly this subject and start.
func (c *Calendar) FindEvent(subject string, start time.Time) (model.Event, bool) {
	ev, ok := c.index[model.KeyOf(subject, start)]
	if !ok {
		return model.Event{}, false
	}
	return *ev, true
}

func (c *Calendar) between(from, to time.Time) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range c.events {
		if ev.Intersects(from, to) {
			out = append(out, *ev)
		}
	}
	sortByStart(out)
	return out
}

func sortByStart(events []model.Event) {
	slices.SortStableFunc(events, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})
}
