package calendar

import (
	"fmt"
	"regexp"
	"slices"

	appLog "vcal/internal/log"
	"vcal/internal/model"
	"vcal/internal/recur"
	"vcal/internal/tz"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Registry is the name-keyed directory of calendars plus the active
// calendar. Name uniqueness is enforced here; there is no process-wide
// name list.
type Registry struct {
	zones     *tz.Service
	calendars map[string]*Calendar
	active    *Calendar
	expand    recur.Options
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxOccurrences caps how many occurrences one recurring event may
// expand into in calendars created by the registry.
func WithMaxOccurrences(n int) Option {
	return func(r *Registry) {
		r.expand.MaxOccurrences = n
	}
}

func NewRegistry(zones *tz.Service, opts ...Option) *Registry {
	if zones == nil {
		zones = tz.NewService()
	}
	r := &Registry{
		zones:     zones,
		calendars: make(map[string]*Calendar),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Zones exposes the timezone service the registry validates against.
func (r *Registry) Zones() *tz.Service { return r.zones }

// ValidName reports whether name uses only letters, digits and underscore.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Create adds an empty calendar. The first calendar created becomes active.
func (r *Registry) Create(name, zone string) (*Calendar, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidCalendarName, name)
	}
	if _, exists := r.calendars[name]; exists {
		return nil, fmt.Errorf("%w: %q", model.ErrDuplicateCalendar, name)
	}
	loc, err := r.zones.Load(zone)
	if err != nil {
		return nil, err
	}

	c := New(name, loc)
	c.expand = r.expand
	r.calendars[name] = c
	if r.active == nil {
		r.active = c
	}
	appLog.Debug("registry: calendar created", "name", name, "timezone", zone)
	return c, nil
}

// Get returns the named calendar or ErrCalendarNotFound.
func (r *Registry) Get(name string) (*Calendar, error) {
	c, ok := r.calendars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrCalendarNotFound, name)
	}
	return c, nil
}

// Rename moves a calendar to a new unused name.
func (r *Registry) Rename(oldName, newName string) error {
	c, err := r.Get(oldName)
	if err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if !ValidName(newName) {
		return fmt.Errorf("%w: %q", model.ErrInvalidCalendarName, newName)
	}
	if _, exists := r.calendars[newName]; exists {
		return fmt.Errorf("%w: %q", model.ErrDuplicateCalendar, newName)
	}

	delete(r.calendars, oldName)
	c.name = newName
	r.calendars[newName] = c
	appLog.Debug("registry: calendar renamed", "from", oldName, "to", newName)
	return nil
}

// SetTimezone moves a calendar to another zone. Events keep their
// wall-clock times; their absolute instants move with the zone.
func (r *Registry) SetTimezone(name, zone string) error {
	c, err := r.Get(name)
	if err != nil {
		return err
	}
	loc, err := r.zones.Load(zone)
	if err != nil {
		return err
	}
	c.relocate(loc)
	appLog.Debug("registry: calendar timezone changed", "name", name, "timezone", zone)
	return nil
}

// Remove deletes a calendar. If it was active, the alphabetically first
// remaining calendar becomes active, or none if the registry is empty.
func (r *Registry) Remove(name string) error {
	c, err := r.Get(name)
	if err != nil {
		return err
	}
	delete(r.calendars, name)
	if r.active == c {
		r.active = nil
		if names := r.Names(); len(names) > 0 {
			r.active = r.calendars[names[0]]
		}
	}
	appLog.Debug("registry: calendar removed", "name", name)
	return nil
}

// SetActive selects the calendar used by operations that name none.
func (r *Registry) SetActive(name string) error {
	c, err := r.Get(name)
	if err != nil {
		return err
	}
	r.active = c
	return nil
}

// Active returns the active calendar, or ErrCalendarNotFound before any
// calendar exists.
func (r *Registry) Active() (*Calendar, error) {
	if r.active == nil {
		return nil, fmt.Errorf("%w: no active calendar", model.ErrCalendarNotFound)
	}
	return r.active, nil
}

// Names lists calendar names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.calendars))
	for n := range r.calendars {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
