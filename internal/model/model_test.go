package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNewEvent_RejectsBadInterval(t *testing.T) {
	tests := []struct {
		name       string
		subject    string
		start, end time.Time
	}{
		{"end before start", "Standup", at(2023, 5, 10, 11, 0), at(2023, 5, 10, 10, 0)},
		{"end equals start", "Standup", at(2023, 5, 10, 10, 0), at(2023, 5, 10, 10, 0)},
		{"blank subject", "  ", at(2023, 5, 10, 10, 0), at(2023, 5, 10, 11, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvent(tt.subject, tt.start, tt.end)
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("err = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestNewEvent_DefaultsToPublic(t *testing.T) {
	ev, err := NewEvent("Standup", at(2023, 5, 10, 10, 0), at(2023, 5, 10, 11, 0))
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if !ev.Public {
		t.Error("expected new event to be public")
	}
	if ev.Duration() != time.Hour {
		t.Errorf("Duration = %v, want 1h", ev.Duration())
	}
}

func TestNewAllDayEvent_CoversWholeDates(t *testing.T) {
	ev, err := NewAllDayEvent("Conference", at(2023, 5, 15, 13, 0), at(2023, 5, 17, 0, 0))
	if err != nil {
		t.Fatalf("NewAllDayEvent: %v", err)
	}
	if !ev.Start.Equal(at(2023, 5, 15, 0, 0)) {
		t.Errorf("Start = %v, want 2023-05-15 00:00", ev.Start)
	}
	if !ev.End.Equal(at(2023, 5, 18, 0, 0)) {
		t.Errorf("End = %v, want 2023-05-18 00:00", ev.End)
	}
	if got := ev.LastDate().Format(DateLayout); got != "2023-05-17" {
		t.Errorf("LastDate = %s, want 2023-05-17", got)
	}
}

func TestNewAllDayEvent_LastBeforeFirst(t *testing.T) {
	_, err := NewAllDayEvent("Trip", at(2023, 5, 15, 0, 0), at(2023, 5, 14, 0, 0))
	if !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("err = %v, want ErrInvalidEvent", err)
	}
}

func TestEvent_OverlapsIsHalfOpen(t *testing.T) {
	a := Event{Subject: "A", Start: at(2023, 5, 10, 10, 0), End: at(2023, 5, 10, 11, 0)}
	b := Event{Subject: "B", Start: at(2023, 5, 10, 10, 30), End: at(2023, 5, 10, 11, 30)}
	c := Event{Subject: "C", Start: at(2023, 5, 10, 11, 0), End: at(2023, 5, 10, 12, 0)}

	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Error("expected A and B to overlap")
	}
	if a.Overlaps(c) || c.Overlaps(a) {
		t.Error("touching intervals must not overlap")
	}
}

func TestEvent_Contains(t *testing.T) {
	timed := Event{Subject: "A", Start: at(2023, 5, 10, 10, 0), End: at(2023, 5, 10, 11, 0)}
	if !timed.Contains(at(2023, 5, 10, 10, 0)) || !timed.Contains(at(2023, 5, 10, 11, 0)) {
		t.Error("timed event must contain both endpoints")
	}
	if timed.Contains(at(2023, 5, 10, 11, 1)) {
		t.Error("timed event must not contain an instant after its end")
	}

	allDay, _ := NewAllDayEvent("Holiday", at(2023, 5, 15, 0, 0), at(2023, 5, 15, 0, 0))
	if !allDay.Contains(at(2023, 5, 15, 23, 59)) {
		t.Error("all-day event must contain late evening of its date")
	}
	if allDay.Contains(at(2023, 5, 16, 0, 0)) {
		t.Error("all-day event must not contain the following midnight")
	}
}

func TestEvent_InKeepsAllDayDates(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("zone database unavailable: %v", err)
	}
	ev, _ := NewAllDayEvent("Holiday", at(2023, 5, 15, 0, 0), at(2023, 5, 15, 0, 0))
	moved := ev.In(tokyo)
	if got := moved.Start.Format(DateLayout); got != "2023-05-15" {
		t.Errorf("Start date = %s, want 2023-05-15", got)
	}
	if moved.Start.Location() != tokyo {
		t.Errorf("Start location = %v, want Asia/Tokyo", moved.Start.Location())
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(at(2025, 3, 28, 23, 0), at(2025, 4, 5, 1, 0)); got != 8 {
		t.Errorf("DaysBetween = %d, want 8", got)
	}
	if got := DaysBetween(at(2025, 4, 5, 0, 0), at(2025, 3, 28, 0, 0)); got != -8 {
		t.Errorf("DaysBetween = %d, want -8", got)
	}
}

func TestEdit_ApplyUnknownProperty(t *testing.T) {
	ev := Event{Subject: "A", Start: at(2023, 5, 10, 10, 0), End: at(2023, 5, 10, 11, 0)}
	if _, ok := (Edit{}).Apply(ev); ok {
		t.Error("zero Edit must not apply")
	}
}

func TestEdit_ApplyTimeOfDayKeepsDate(t *testing.T) {
	ev := Event{Subject: "A", Start: at(2023, 5, 10, 10, 0), End: at(2023, 5, 10, 11, 0)}
	got, ok := SetStart(at(2000, 1, 1, 9, 30)).ApplyTimeOfDay(ev)
	if !ok {
		t.Fatal("expected edit to apply")
	}
	if !got.Start.Equal(at(2023, 5, 10, 9, 30)) {
		t.Errorf("Start = %v, want 2023-05-10 09:30", got.Start)
	}
}

func TestEdit_StartOnAllDayMakesTimed(t *testing.T) {
	ev, _ := NewAllDayEvent("Holiday", at(2023, 5, 15, 0, 0), at(2023, 5, 15, 0, 0))
	got, _ := SetStart(at(2023, 5, 15, 9, 0)).Apply(*ev)
	if got.AllDay {
		t.Error("expected event to become timed")
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRecurringBuilder_Valid(t *testing.T) {
	r, err := NewRecurringEvent("Gym").
		Timed(at(2023, 5, 8, 14, 0), at(2023, 5, 8, 15, 0)).
		On(time.Friday, time.Monday, time.Wednesday, time.Monday).
		Count(4).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	got := r.Weekdays()
	if len(got) != len(want) {
		t.Fatalf("Weekdays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Weekdays[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if r.ID() == "" {
		t.Error("expected a generated series id")
	}
	if r.Duration() != time.Hour {
		t.Errorf("Duration = %v, want 1h", r.Duration())
	}
}

func TestRecurringBuilder_Invalid(t *testing.T) {
	start, end := at(2023, 5, 8, 14, 0), at(2023, 5, 8, 15, 0)
	tests := []struct {
		name    string
		build   func() (*RecurringEvent, error)
		message string
	}{
		{"no weekdays", func() (*RecurringEvent, error) {
			return NewRecurringEvent("Gym").Timed(start, end).Count(3).Build()
		}, "weekday"},
		{"zero count", func() (*RecurringEvent, error) {
			return NewRecurringEvent("Gym").Timed(start, end).On(time.Monday).Count(0).Build()
		}, "count must be positive"},
		{"until before start", func() (*RecurringEvent, error) {
			return NewRecurringEvent("Gym").Timed(start, end).On(time.Monday).Until(at(2023, 5, 1, 0, 0)).Build()
		}, "before first date"},
		{"end not after start", func() (*RecurringEvent, error) {
			return NewRecurringEvent("Gym").Timed(end, start).On(time.Monday).Count(2).Build()
		}, "end time must be after start time"},
		{"both rules", func() (*RecurringEvent, error) {
			return NewRecurringEvent("Gym").Timed(start, end).On(time.Monday).Count(2).Until(at(2023, 6, 1, 0, 0)).Build()
		}, "mutually exclusive"},
		{"no rule", func() (*RecurringEvent, error) {
			return NewRecurringEvent("Gym").Timed(start, end).On(time.Monday).Build()
		}, "count or until"},
		{"spans midnight", func() (*RecurringEvent, error) {
			return NewRecurringEvent("Gym").Timed(start, at(2023, 5, 9, 1, 0)).On(time.Monday).Count(2).Build()
		}, "same date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.build()
			if r != nil {
				t.Fatalf("expected nil series, got %+v", r)
			}
			if !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("err = %v, want ErrInvalidEvent", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("err = %q, want it to mention %q", err, tt.message)
			}
		})
	}
}

func TestRecurringEvent_OccurrenceOn(t *testing.T) {
	r, err := NewRecurringEvent("Gym").
		Timed(at(2023, 5, 8, 14, 0), at(2023, 5, 8, 15, 0)).
		On(time.Monday).
		Count(2).
		Location("Basement").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	occ := r.OccurrenceOn(at(2023, 5, 15, 0, 0))
	if !occ.Start.Equal(at(2023, 5, 15, 14, 0)) || !occ.End.Equal(at(2023, 5, 15, 15, 0)) {
		t.Errorf("occurrence = %v..%v, want 14:00..15:00 on 2023-05-15", occ.Start, occ.End)
	}
	if occ.SeriesID != r.ID() || occ.Location != "Basement" {
		t.Errorf("occurrence = %+v, want series %s at Basement", occ, r.ID())
	}
}
