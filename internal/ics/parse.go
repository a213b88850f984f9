package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "vcal/internal/log"
	"vcal/internal/model"
)

const (
	propertyClass        = ical.ComponentProperty("CLASS")
	propertyRelatedTo    = ical.ComponentProperty("RELATED-TO")
	propertyRecurrenceID = ical.ComponentProperty("RECURRENCE-ID")
)

// ParsedEvent is a VEVENT reduced to what the calendar core can store.
// Recurrence is kept as the raw RRULE; Import decides how to store it.
type ParsedEvent struct {
	Source Source

	UID         string
	Summary     string
	Description string
	Location    string
	Public      bool

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule     string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// ParseICS parses an ICS payload. Times without a TZID or UTC marker are
// read as wall-clock times in loc, and all-day dates are anchored on loc's
// midnights. VEVENTs that cannot be read are logged and skipped.
func ParseICS(src Source, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "source", src.redacted())
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve, loc)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "id", src.ID, "source", src.redacted())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "source", src.redacted(), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	out := ParsedEvent{Source: src, Public: true}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(propertyClass); p != nil {
		class := strings.ToUpper(strings.TrimSpace(p.Value))
		out.Public = class != "PRIVATE" && class != "CONFIDENTIAL"
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, endErr := ve.GetEndAt()

	if out.AllDay {
		out.Start = model.WithDate(start, loc)
		out.End = model.NextDay(out.Start)
		if endErr == nil {
			if e := model.WithDate(end, loc); e.After(out.Start) {
				out.End = e
			}
		}
	} else {
		if endErr != nil {
			return out, errors.New("missing DTEND")
		}
		out.Start = anchor(start, dtStart, loc)
		out.End = anchor(end, ve.GetProperty(ical.ComponentPropertyDtEnd), loc)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, paramLocation(p.ICalParameters, loc)); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(propertyRecurrenceID); p != nil {
		if t, err := parseICSTime(p.Value, paramLocation(p.ICalParameters, loc)); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

// isDateValue reports a DATE (not DATE-TIME) property value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// anchor re-reads floating times (no TZID, no trailing Z) on loc's wall
// clock. Zoned and UTC times are kept as the parser resolved them.
func anchor(t time.Time, p *ical.IANAProperty, loc *time.Location) time.Time {
	if p == nil {
		return t.In(loc)
	}
	if _, zoned := p.ICalParameters["TZID"]; zoned || strings.HasSuffix(p.Value, "Z") {
		return t.In(loc)
	}
	return model.WallClock(t, loc)
}

func paramLocation(params map[string][]string, fallback *time.Location) *time.Location {
	if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
		if l, err := time.LoadLocation(tzs[0]); err == nil {
			return l
		}
	}
	return fallback
}

// parseICSTime parses the DATE / DATE-TIME / UTC forms used by EXDATE and
// RECURRENCE-ID values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
