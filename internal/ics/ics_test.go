package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"vcal/internal/calendar"
	"vcal/internal/model"
)

func icsBody(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var sample = icsBody(
	"BEGIN:VEVENT",
	"UID:standup-1",
	"SUMMARY:Standup",
	"DTSTART:20230508T090000",
	"DTEND:20230508T091500",
	"RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=4",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:retro-1",
	"SUMMARY:Retro",
	"DTSTART:20230509T150000Z",
	"DTEND:20230509T160000Z",
	"RRULE:FREQ=WEEKLY;INTERVAL=2;COUNT=3",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:gym-1",
	"SUMMARY:Gym",
	"DTSTART:20230508T180000",
	"DTEND:20230508T190000",
	"RRULE:FREQ=DAILY;COUNT=5",
	"EXDATE:20230510T180000",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:gym-1",
	"SUMMARY:Gym (moved)",
	"RECURRENCE-ID:20230511T180000",
	"DTSTART:20230511T200000",
	"DTEND:20230511T210000",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:offsite-1",
	"SUMMARY:Offsite",
	"CLASS:PRIVATE",
	"DTSTART;VALUE=DATE:20230520",
	"DTEND;VALUE=DATE:20230522",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:clash-1",
	"SUMMARY:Clash",
	"DTSTART:20230508T090500",
	"DTEND:20230508T093000",
	"END:VEVENT",
)

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestParseICS(t *testing.T) {
	events, err := ParseICS(Source{ID: "work"}, sample, time.UTC)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 6 {
		t.Fatalf("len(events) = %d, want 6", len(events))
	}

	standup := events[0]
	if standup.Summary != "Standup" || standup.RawRRule == "" {
		t.Errorf("standup = %+v", standup)
	}
	if !standup.Start.Equal(utc(2023, 5, 8, 9, 0)) || !standup.End.Equal(utc(2023, 5, 8, 9, 15)) {
		t.Errorf("standup times = %v..%v", standup.Start, standup.End)
	}

	gym := events[2]
	if len(gym.ExDates) != 1 || !gym.ExDates[0].Equal(utc(2023, 5, 10, 18, 0)) {
		t.Errorf("gym exdates = %v", gym.ExDates)
	}
	if events[3].RecurrenceID == nil {
		t.Errorf("override RecurrenceID = nil")
	}

	offsite := events[4]
	if !offsite.AllDay || offsite.Public {
		t.Errorf("offsite AllDay=%v Public=%v, want true false", offsite.AllDay, offsite.Public)
	}
	if !offsite.Start.Equal(utc(2023, 5, 20, 0, 0)) || !offsite.End.Equal(utc(2023, 5, 22, 0, 0)) {
		t.Errorf("offsite = %v..%v", offsite.Start, offsite.End)
	}
	if events[5].Source.ID != "work" {
		t.Errorf("source id = %q", events[5].Source.ID)
	}
}

func TestParseICS_FloatingTimesUseCalendarZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:a",
		"SUMMARY:Floating",
		"DTSTART:20230601T090000",
		"DTEND:20230601T100000",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:b",
		"SUMMARY:Pinned",
		"DTSTART:20230601T130000Z",
		"DTEND:20230601T140000Z",
		"END:VEVENT",
	)
	events, err := ParseICS(Source{ID: "x"}, body, ny)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	want := time.Date(2023, 6, 1, 9, 0, 0, 0, ny)
	for _, ev := range events {
		if !ev.Start.Equal(want) {
			t.Errorf("%s start = %v, want %v", ev.Summary, ev.Start, want)
		}
		if ev.Start.Location() != ny {
			t.Errorf("%s location = %v, want %v", ev.Summary, ev.Start.Location(), ny)
		}
	}
}

func TestParseICS_SkipsBrokenEvents(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"SUMMARY:No UID",
		"DTSTART:20230601T090000Z",
		"DTEND:20230601T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:no-end",
		"SUMMARY:No end",
		"DTSTART:20230601T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:ok",
		"SUMMARY:Fine",
		"DTSTART:20230601T090000Z",
		"DTEND:20230601T100000Z",
		"END:VEVENT",
	)
	events, err := ParseICS(Source{ID: "x"}, body, time.UTC)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 1 || events[0].UID != "ok" {
		t.Errorf("events = %+v, want only uid ok", events)
	}

	if _, err := ParseICS(Source{ID: "x"}, nil, time.UTC); err == nil {
		t.Errorf("ParseICS(empty) error = nil")
	}
}

func importSample(t *testing.T) (*calendar.Calendar, ImportResult) {
	t.Helper()
	events, err := ParseICS(Source{ID: "work"}, sample, time.UTC)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	c := calendar.New("Work", time.UTC)
	res, err := Import(c, events, ImportOptions{From: utc(2023, 5, 1, 0, 0), To: utc(2023, 7, 1, 0, 0)})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	return c, res
}

func TestImport(t *testing.T) {
	c, res := importSample(t)

	want := ImportResult{Events: 12, Series: 1, Conflicts: 1, Skipped: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if c.Len() != 12 {
		t.Errorf("Len = %d, want 12", c.Len())
	}

	series := c.Series()
	if len(series) != 1 || series[0].ID() != "standup-1" || series[0].Count() != 4 {
		t.Fatalf("series = %v", series)
	}
	wantDays := []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	if got := series[0].Weekdays(); len(got) != 3 || got[0] != wantDays[0] || got[1] != wantDays[1] || got[2] != wantDays[2] {
		t.Errorf("weekdays = %v, want %v", got, wantDays)
	}
	if ev, ok := c.FindEvent("Standup", utc(2023, 5, 15, 9, 0)); !ok || ev.SeriesID != "standup-1" {
		t.Errorf("FindEvent(Standup 05-15) = %+v, %v", ev, ok)
	}

	for _, d := range []int{9, 23} {
		if _, ok := c.FindEvent("Retro", utc(2023, 5, d, 15, 0)); !ok {
			t.Errorf("Retro on 05-%02d missing", d)
		}
	}
	if _, ok := c.FindEvent("Retro", utc(2023, 5, 16, 15, 0)); ok {
		t.Errorf("Retro on 05-16 should be skipped by interval")
	}

	if _, ok := c.FindEvent("Gym", utc(2023, 5, 10, 18, 0)); ok {
		t.Errorf("Gym on excluded date was imported")
	}
	if _, ok := c.FindEvent("Gym", utc(2023, 5, 11, 18, 0)); !ok {
		t.Errorf("Gym base occurrence on 05-11 missing")
	}
	if _, ok := c.FindEvent("Gym (moved)", utc(2023, 5, 11, 20, 0)); ok {
		t.Errorf("override should not be imported")
	}

	if _, ok := c.FindEvent("Clash", utc(2023, 5, 8, 9, 5)); ok {
		t.Errorf("conflicting event was stored")
	}
	if !c.IsBusy(utc(2023, 5, 21, 12, 0)) {
		t.Errorf("all-day Offsite should make 05-21 busy")
	}
}

func TestImport_WindowBoundsExpansion(t *testing.T) {
	events, err := ParseICS(Source{ID: "work"}, sample, time.UTC)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	c := calendar.New("Work", time.UTC)
	res, err := Import(c, events, ImportOptions{From: utc(2023, 5, 1, 0, 0), To: utc(2023, 5, 15, 0, 0)})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	// Retro keeps only 05-09; series and single events are not windowed.
	if res.Events != 10 {
		t.Errorf("Events = %d, want 10", res.Events)
	}

	if _, err := Import(c, nil, ImportOptions{From: utc(2023, 5, 2, 0, 0), To: utc(2023, 5, 1, 0, 0)}); err == nil {
		t.Errorf("Import with backwards window error = nil")
	}
}

func TestToSeries(t *testing.T) {
	base := ParsedEvent{
		UID:     "u",
		Summary: "S",
		Public:  true,
		Start:   utc(2023, 5, 8, 9, 0),
		End:     utc(2023, 5, 8, 10, 0),
	}
	tests := []struct {
		rule string
		ok   bool
	}{
		{"FREQ=WEEKLY;BYDAY=MO,WE;COUNT=3", true},
		{"FREQ=DAILY;UNTIL=20230520", true},
		{"FREQ=WEEKLY;UNTIL=20230520T235959Z", true},
		{"FREQ=WEEKLY;BYDAY=MO", false},
		{"FREQ=WEEKLY;INTERVAL=2;COUNT=3", false},
		{"FREQ=MONTHLY;COUNT=3", false},
		{"FREQ=WEEKLY;BYDAY=1MO;COUNT=3", false},
		{"FREQ=DAILY;BYHOUR=9,17;COUNT=3", false},
	}
	for _, tt := range tests {
		pe := base
		pe.RawRRule = tt.rule
		_, ok := toSeries(pe, time.UTC)
		if ok != tt.ok {
			t.Errorf("toSeries(%q) ok = %v, want %v", tt.rule, ok, tt.ok)
		}
	}

	pe := base
	pe.RawRRule = "FREQ=DAILY;UNTIL=20230520"
	r, _ := toSeries(pe, time.UTC)
	if r == nil || !r.Until().Equal(utc(2023, 5, 20, 0, 0)) || len(r.Weekdays()) != 7 {
		t.Errorf("daily series = %v", r)
	}

	pe.ExDates = []time.Time{utc(2023, 5, 9, 9, 0)}
	if _, ok := toSeries(pe, time.UTC); ok {
		t.Errorf("toSeries with EXDATE ok = true, want false")
	}
}

func TestWriteCalendar_RoundTrip(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	src := calendar.New("Home", ny)
	meeting, _ := model.NewEvent("Dentist", time.Date(2023, 6, 1, 9, 0, 0, 0, ny), time.Date(2023, 6, 1, 10, 0, 0, 0, ny))
	meeting.Location = "Main St"
	if _, err := src.AddEvent(meeting, true); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	trip, _ := model.NewAllDayEvent("Trip", time.Date(2023, 6, 3, 0, 0, 0, 0, ny), time.Date(2023, 6, 4, 0, 0, 0, 0, ny))
	trip.Public = false
	if _, err := src.AddEvent(trip, true); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	walk, err := model.NewRecurringEvent("Walk").
		WithID("walk-series").
		Timed(time.Date(2023, 6, 5, 7, 0, 0, 0, ny), time.Date(2023, 6, 5, 7, 30, 0, 0, ny)).
		On(time.Monday, time.Tuesday).
		Count(2).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := src.AddRecurringEvent(walk, true); err != nil {
		t.Fatalf("AddRecurringEvent: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCalendar(&buf, src.Name(), src.Location(), src.Events(), utc(2023, 5, 1, 0, 0)); err != nil {
		t.Fatalf("WriteCalendar: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"CLASS:PRIVATE", "CLASS:PUBLIC", "RELATED-TO:walk-series"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	parsed, err := ParseICS(Source{ID: "export"}, buf.Bytes(), ny)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	dst := calendar.New("Copy", ny)
	res, err := Import(dst, parsed, ImportOptions{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Events != src.Len() || res.Conflicts != 0 {
		t.Fatalf("import result = %+v, want %d events", res, src.Len())
	}
	for _, ev := range src.Events() {
		got, ok := dst.FindEvent(ev.Subject, ev.Start)
		if !ok {
			t.Errorf("%s at %v missing after round trip", ev.Subject, ev.Start)
			continue
		}
		if !got.End.Equal(ev.End) || got.AllDay != ev.AllDay || got.Public != ev.Public || got.Location != ev.Location {
			t.Errorf("round trip %s = %+v, want %+v", ev.Subject, got, ev)
		}
		if got.SeriesID != "" {
			t.Errorf("imported %s kept series %q", ev.Subject, got.SeriesID)
		}
	}
}

func TestEventUID(t *testing.T) {
	ev := model.Event{Subject: "A", Start: utc(2023, 1, 1, 9, 0), End: utc(2023, 1, 1, 10, 0)}
	if EventUID("Work", ev) != EventUID("Work", ev) {
		t.Errorf("EventUID is not stable")
	}
	if EventUID("Work", ev) == EventUID("Home", ev) {
		t.Errorf("EventUID ignores calendar name")
	}
	moved := ev
	moved.Start = moved.Start.Add(time.Hour)
	if EventUID("Work", ev) == EventUID("Work", moved) {
		t.Errorf("EventUID ignores start")
	}
}
