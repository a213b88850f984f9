package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"vcal/internal/model"
)

// uidSpace namespaces the name-based UIDs given to exported events, so an
// unchanged event keeps its UID across exports.
var uidSpace = uuid.MustParse("6f1f4a58-3c1e-4f0e-9a57-2b8f1d2c9e41")

// WriteCalendar writes events as a PUBLISH calendar with one VEVENT per
// event. Occurrences of a recurring series carry the series ID in
// RELATED-TO; visibility is written as CLASS.
func WriteCalendar(w io.Writer, name string, loc *time.Location, events []model.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//vcal//vcal//EN")
	cal.SetXWRCalName(name)
	if loc != nil {
		cal.SetXWRTimezone(loc.String())
	}

	for _, ev := range events {
		ve := cal.AddEvent(EventUID(name, ev))
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Subject)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			ve.SetAllDayEndAt(ev.End)
		} else {
			ve.SetStartAt(ev.Start)
			ve.SetEndAt(ev.End)
		}
		class := "PUBLIC"
		if !ev.Public {
			class = "PRIVATE"
		}
		ve.SetProperty(propertyClass, class)
		if ev.SeriesID != "" {
			ve.SetProperty(propertyRelatedTo, ev.SeriesID)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

// EventUID derives a stable UID from the calendar name and event identity.
func EventUID(calendarName string, ev model.Event) string {
	key := ev.Key()
	seed := calendarName + "\x00" + key.Subject + "\x00" + time.Unix(0, key.Start).UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uidSpace, []byte(seed)).String() + "@vcal"
}
