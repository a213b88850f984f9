package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecurringEvent is a weekly pattern: a set of weekdays, a start and end
// time-of-day shared by every occurrence, and exactly one termination
// rule (occurrence count or inclusive until-date). It is immutable once
// built; use NewRecurringEvent to construct one.
type RecurringEvent struct {
	id          string
	subject     string
	description string
	location    string
	public      bool
	allDay      bool

	// first occurrence; for all-day series end is the following midnight
	start time.Time
	end   time.Time

	weekdays []time.Weekday
	count    int
	until    time.Time
}

func (r *RecurringEvent) ID() string          { return r.id }
func (r *RecurringEvent) Subject() string     { return r.subject }
func (r *RecurringEvent) Description() string { return r.description }
func (r *RecurringEvent) Location() string    { return r.location }
func (r *RecurringEvent) Public() bool        { return r.public }
func (r *RecurringEvent) AllDay() bool        { return r.allDay }

// Start is the first occurrence's start; its clock is the series'
// start time-of-day and its location anchors the wall-clock times.
func (r *RecurringEvent) Start() time.Time { return r.start }

// End is the first occurrence's end.
func (r *RecurringEvent) End() time.Time { return r.end }

// Duration is constant across occurrences.
func (r *RecurringEvent) Duration() time.Duration { return r.end.Sub(r.start) }

// Weekdays returns the pattern's days in Sunday-first order.
func (r *RecurringEvent) Weekdays() []time.Weekday { return slices.Clone(r.weekdays) }

// Count is the requested number of occurrences, or 0 when the series is
// bounded by Until instead.
func (r *RecurringEvent) Count() int { return r.count }

// Until is the inclusive last date (local midnight), or the zero time when
// the series is bounded by Count instead.
func (r *RecurringEvent) Until() time.Time { return r.until }

// HasWeekday reports whether occurrences fall on d.
func (r *RecurringEvent) HasWeekday(d time.Weekday) bool {
	return slices.Contains(r.weekdays, d)
}

// OccurrenceOn builds the occurrence for the given date. The date is read
// in the series' own location.
func (r *RecurringEvent) OccurrenceOn(day time.Time) Event {
	day = WithDate(day.In(r.start.Location()), r.start.Location())
	ev := Event{
		Subject:     r.subject,
		Description: r.description,
		Location:    r.location,
		Public:      r.public,
		AllDay:      r.allDay,
		SeriesID:    r.id,
	}
	if r.allDay {
		ev.Start = day
		ev.End = NextDay(day)
		return ev
	}
	ev.Start = WithClock(day, r.start)
	ev.End = WithClock(day, r.end)
	return ev
}

// RecurringEventBuilder validates a RecurringEvent before it exists.
// Every setter records problems; Build reports them together.
type RecurringEventBuilder struct {
	r        RecurringEvent
	problems []string
	hasStart bool
	hasCount bool
	hasUntil bool
}

// NewRecurringEvent starts a builder for a public series named subject.
func NewRecurringEvent(subject string) *RecurringEventBuilder {
	return &RecurringEventBuilder{r: RecurringEvent{subject: subject, public: true}}
}

// WithID sets the series identifier. A random one is assigned otherwise.
func (b *RecurringEventBuilder) WithID(id string) *RecurringEventBuilder {
	b.r.id = id
	return b
}

// Timed sets the first occurrence. start and end must share a date and
// end's time-of-day must be after start's.
func (b *RecurringEventBuilder) Timed(start, end time.Time) *RecurringEventBuilder {
	b.hasStart = true
	b.r.allDay = false
	end = end.In(start.Location())
	if !sameDate(start, end) {
		b.problems = append(b.problems, "start and end must fall on the same date")
	} else if !end.After(start) {
		b.problems = append(b.problems, "end time must be after start time")
	}
	b.r.start = start
	b.r.end = end
	return b
}

// AllDay makes every occurrence an all-day event; first is the date the
// day-by-day walk starts from.
func (b *RecurringEventBuilder) AllDay(first time.Time) *RecurringEventBuilder {
	b.hasStart = true
	b.r.allDay = true
	b.r.start = StartOfDay(first)
	b.r.end = NextDay(first)
	return b
}

// On adds weekdays to the pattern.
func (b *RecurringEventBuilder) On(days ...time.Weekday) *RecurringEventBuilder {
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			b.problems = append(b.problems, fmt.Sprintf("weekday %d out of range", int(d)))
			continue
		}
		if !slices.Contains(b.r.weekdays, d) {
			b.r.weekdays = append(b.r.weekdays, d)
		}
	}
	return b
}

// Count bounds the series by number of occurrences.
func (b *RecurringEventBuilder) Count(n int) *RecurringEventBuilder {
	b.hasCount = true
	b.r.count = n
	return b
}

// Until bounds the series by an inclusive last date.
func (b *RecurringEventBuilder) Until(date time.Time) *RecurringEventBuilder {
	b.hasUntil = true
	b.r.until = date
	return b
}

func (b *RecurringEventBuilder) Description(s string) *RecurringEventBuilder {
	b.r.description = s
	return b
}

func (b *RecurringEventBuilder) Location(s string) *RecurringEventBuilder {
	b.r.location = s
	return b
}

func (b *RecurringEventBuilder) Private() *RecurringEventBuilder {
	b.r.public = false
	return b
}

// Build returns the series or an ErrInvalidEvent listing every problem.
func (b *RecurringEventBuilder) Build() (*RecurringEvent, error) {
	problems := slices.Clone(b.problems)

	if strings.TrimSpace(b.r.subject) == "" {
		problems = append(problems, "subject is required")
	}
	if !b.hasStart {
		problems = append(problems, "first occurrence is required")
	}
	if len(b.r.weekdays) == 0 {
		problems = append(problems, "at least one weekday is required")
	}

	switch {
	case b.hasCount && b.hasUntil:
		problems = append(problems, "count and until are mutually exclusive")
	case !b.hasCount && !b.hasUntil:
		problems = append(problems, "count or until is required")
	case b.hasCount && b.r.count <= 0:
		problems = append(problems, fmt.Sprintf("count must be positive, got %d", b.r.count))
	case b.hasUntil && b.hasStart:
		until := WithDate(b.r.until, b.r.start.Location())
		if until.Before(StartOfDay(b.r.start)) {
			problems = append(problems, fmt.Sprintf("until %s is before first date %s",
				until.Format(DateLayout), b.r.start.Format(DateLayout)))
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: recurring %q: %s", ErrInvalidEvent, b.r.subject, strings.Join(problems, "; "))
	}

	r := b.r
	r.weekdays = slices.Clone(r.weekdays)
	slices.Sort(r.weekdays)
	if b.hasUntil {
		r.until = WithDate(r.until, r.start.Location())
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	return &r, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
