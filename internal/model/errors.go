package model

import "errors"

// Failure kinds shared by the calendar core. Callers match them with
// errors.Is; the returned errors carry extra context via %w wrapping.
var (
	// ErrConflictingEvent: an insertion or edit would overlap an existing
	// event while auto-decline is in effect.
	ErrConflictingEvent = errors.New("conflicting event")
	// ErrEventNotFound: no event matches the (subject, start) key.
	ErrEventNotFound = errors.New("event not found")
	// ErrInvalidEvent: malformed interval, recurrence rule or query range.
	ErrInvalidEvent = errors.New("invalid event")

	ErrCalendarNotFound    = errors.New("calendar not found")
	ErrDuplicateCalendar   = errors.New("duplicate calendar")
	ErrInvalidCalendarName = errors.New("invalid calendar name")
	ErrInvalidTimezone     = errors.New("invalid timezone")
)
