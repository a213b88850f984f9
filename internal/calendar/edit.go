package calendar

import (
	"fmt"
	"time"

	appLog "vcal/internal/log"
	"vcal/internal/model"
)

// EditSingleEvent applies edit to the event keyed by (subject, start).
//
// It fails with ErrEventNotFound when no event matches, ErrInvalidEvent when
// the result is malformed, and ErrConflictingEvent when a start or end
// change would overlap another event. An unrecognised property reports
// (false, nil). After a subject or start change the event is found under
// its new key only.
func (c *Calendar) EditSingleEvent(subject string, start time.Time, edit model.Edit) (bool, error) {
	target, ok := c.index[model.KeyOf(subject, start)]
	if !ok {
		return false, fmt.Errorf("%w: %q at %s", model.ErrEventNotFound, subject, start.Format(model.DateTimeLayout))
	}

	updated, ok := edit.Apply(*target)
	if !ok {
		return false, nil
	}
	if err := c.checkEdits([]*model.Event{target}, []model.Event{updated}, edit); err != nil {
		return false, err
	}

	c.commit([]*model.Event{target}, []model.Event{updated})
	appLog.Debug("calendar: event edited", "calendar", c.name, "subject", subject, "property", edit.Property)
	return true, nil
}

// EditEventsFromDate applies edit to every event with this subject that
// starts at or after from, and returns how many changed. Start and end
// edits keep each event's own date and take only the new time-of-day.
// The batch is validated and conflict-checked as a whole; on any failure
// nothing changes.
func (c *Calendar) EditEventsFromDate(subject string, from time.Time, edit model.Edit) (int, error) {
	return c.editMatching(edit, func(ev *model.Event) bool {
		return ev.Subject == subject && !ev.Start.Before(from)
	})
}

// EditAllEvents is EditEventsFromDate without the date bound.
func (c *Calendar) EditAllEvents(subject string, edit model.Edit) (int, error) {
	return c.editMatching(edit, func(ev *model.Event) bool {
		return ev.Subject == subject
	})
}

func (c *Calendar) editMatching(edit model.Edit, match func(*model.Event) bool) (int, error) {
	var targets []*model.Event
	for _, ev := range c.events {
		if match(ev) {
			targets = append(targets, ev)
		}
	}
	if len(targets) == 0 {
		return 0, nil
	}

	updated := make([]model.Event, len(targets))
	for i, ev := range targets {
		u, ok := edit.ApplyTimeOfDay(*ev)
		if !ok {
			return 0, nil
		}
		updated[i] = u
	}
	if err := c.checkEdits(targets, updated, edit); err != nil {
		return 0, err
	}

	c.commit(targets, updated)
	appLog.Debug("calendar: events edited", "calendar", c.name, "property", edit.Property, "count", len(targets))
	return len(targets), nil
}

// checkEdits validates replacements for targets. Time edits are checked
// against the events outside the batch and against each other.
func (c *Calendar) checkEdits(targets []*model.Event, updated []model.Event, edit model.Edit) error {
	for _, u := range updated {
		if err := u.Validate(); err != nil {
			return err
		}
	}
	if !edit.TouchesTime() {
		return nil
	}

	skip := make(map[*model.Event]bool, len(targets))
	for _, t := range targets {
		skip[t] = true
	}
	for i, u := range updated {
		if existing := c.conflict(u, skip); existing != nil {
			return fmt.Errorf("%w: edited %q at %s overlaps %q", model.ErrConflictingEvent,
				u.Subject, u.Start.Format(model.DateTimeLayout), existing.Subject)
		}
		for _, other := range updated[i+1:] {
			if u.Overlaps(other) {
				return fmt.Errorf("%w: edited %q at %s overlaps edited event at %s", model.ErrConflictingEvent,
					u.Subject, u.Start.Format(model.DateTimeLayout), other.Start.Format(model.DateTimeLayout))
			}
		}
	}
	return nil
}

// commit writes replacements in place and moves their index keys.
func (c *Calendar) commit(targets []*model.Event, updated []model.Event) {
	for _, t := range targets {
		if c.index[t.Key()] == t {
			delete(c.index, t.Key())
		}
	}
	for i, t := range targets {
		*t = updated[i]
		c.index[t.Key()] = t
	}
}
