// Package tz validates IANA zone identifiers and converts wall-clock
// times between zones while keeping the absolute instant fixed.
package tz

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"vcal/internal/model"
)

// Service resolves zone names against the zone database and caches the
// loaded locations.
type Service struct {
	mu    sync.Mutex
	cache map[string]*time.Location
}

func NewService() *Service {
	return &Service{cache: make(map[string]*time.Location)}
}

// Load resolves an IANA identifier such as "Asia/Tokyo". The empty name
// and "Local" are rejected because they do not name a fixed zone.
func (s *Service) Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidTimezone, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if loc, ok := s.cache[name]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrInvalidTimezone, name, err)
	}
	s.cache[name] = loc
	return loc, nil
}

// Validate reports whether name is a usable zone identifier.
func (s *Service) Validate(name string) error {
	_, err := s.Load(name)
	return err
}

// Convert reads the wall-clock fields of dt as a time in from, resolves
// that to an instant using from's rules for that date, and returns the
// same instant on to's wall clock. Both zones are validated first.
func (s *Service) Convert(dt time.Time, from, to string) (time.Time, error) {
	fromLoc, err := s.Load(from)
	if err != nil {
		return time.Time{}, err
	}
	toLoc, err := s.Load(to)
	if err != nil {
		return time.Time{}, err
	}
	return ConvertIn(dt, fromLoc, toLoc), nil
}

// ConvertIn is Convert for already-resolved locations.
func ConvertIn(dt time.Time, from, to *time.Location) time.Time {
	return model.WallClock(dt, from).In(to)
}
