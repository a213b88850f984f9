package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vcal/internal/config"
	"vcal/internal/model"
)

const workICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:planning\r\n" +
	"SUMMARY:Planning\r\n" +
	"DTSTART:20230508T100000\r\n" +
	"DTEND:20230508T110000\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:sync\r\n" +
	"SUMMARY:Sync\r\n" +
	"DTSTART:20230501T160000\r\n" +
	"DTEND:20230501T163000\r\n" +
	"RRULE:FREQ=WEEKLY\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "work.ics")
	if err := os.WriteFile(path, []byte(workICS), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := &config.Config{
		Active:      "Travel",
		HorizonDays: 14,
		CacheDir:    filepath.Join(dir, "cache"),
		Calendars: []config.CalendarConfig{
			{Name: "Work", Timezone: "America/New_York", ICS: []config.ICSConfig{
				{ID: "work", Path: path},
				{ID: "gone", Path: filepath.Join(dir, "missing.ics")},
			}},
			{Name: "Travel", Timezone: "Asia/Tokyo"},
		},
	}
	cfg.Normalize()
	return cfg
}

func newTestBuilder(cfg *config.Config) *Builder {
	b := NewBuilder(cfg)
	b.now = func() time.Time { return time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC) }
	return b
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)
	reg, report, err := newTestBuilder(cfg).Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := strings.Join(reg.Names(), ","); got != "Travel,Work" {
		t.Errorf("Names = %s, want Travel,Work", got)
	}
	active, err := reg.Active()
	if err != nil || active.Name() != "Travel" {
		t.Errorf("Active = %v, %v; want Travel", active, err)
	}
	if len(report.SourceErrors) != 1 {
		t.Errorf("SourceErrors = %v, want the missing file only", report.SourceErrors)
	}

	work, err := reg.Get("Work")
	if err != nil {
		t.Fatalf("Get(Work): %v", err)
	}
	ny := work.Location()
	if _, ok := work.FindEvent("Planning", time.Date(2023, 5, 8, 10, 0, 0, 0, ny)); !ok {
		t.Errorf("Planning missing from Work")
	}

	// Unbounded weekly rule expanded 14 days either side of 2023-05-10.
	for _, d := range []int{1, 8, 15, 22} {
		if _, ok := work.FindEvent("Sync", time.Date(2023, 5, d, 16, 0, 0, 0, ny)); !ok {
			t.Errorf("Sync on 05-%02d missing", d)
		}
	}
	if _, ok := work.FindEvent("Sync", time.Date(2023, 5, 29, 16, 0, 0, 0, ny)); ok {
		t.Errorf("Sync past the horizon was imported")
	}
	if got := report.Imports["Work"].Events; got != 5 {
		t.Errorf("Work imported %d events, want 5", got)
	}
}

func TestBuild_InvalidCalendar(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calendars = append(cfg.Calendars, config.CalendarConfig{Name: "Bad Name", Timezone: "UTC"})
	if _, _, err := newTestBuilder(cfg).Build(context.Background(), cfg); !errors.Is(err, model.ErrInvalidCalendarName) {
		t.Errorf("Build error = %v, want ErrInvalidCalendarName", err)
	}

	cfg = testConfig(t)
	cfg.Calendars[1].Timezone = "Mars/Olympus"
	if _, _, err := newTestBuilder(cfg).Build(context.Background(), cfg); !errors.Is(err, model.ErrInvalidTimezone) {
		t.Errorf("Build error = %v, want ErrInvalidTimezone", err)
	}
}
