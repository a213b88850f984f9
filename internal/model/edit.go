package model

import "time"

// Property names an editable event field.
type Property int

const (
	PropertySubject Property = iota + 1
	PropertyDescription
	PropertyLocation
	PropertyStart
	PropertyEnd
	PropertyVisibility
)

func (p Property) String() string {
	switch p {
	case PropertySubject:
		return "subject"
	case PropertyDescription:
		return "description"
	case PropertyLocation:
		return "location"
	case PropertyStart:
		return "start"
	case PropertyEnd:
		return "end"
	case PropertyVisibility:
		return "visibility"
	default:
		return "unknown"
	}
}

// Edit is a single property change. Build one with the Set* helpers; the
// zero Edit names no property and is rejected by Apply.
type Edit struct {
	Property Property
	Text     string
	Time     time.Time
	Public   bool
}

func SetSubject(s string) Edit     { return Edit{Property: PropertySubject, Text: s} }
func SetDescription(s string) Edit { return Edit{Property: PropertyDescription, Text: s} }
func SetLocation(s string) Edit    { return Edit{Property: PropertyLocation, Text: s} }
func SetStart(t time.Time) Edit    { return Edit{Property: PropertyStart, Time: t} }
func SetEnd(t time.Time) Edit      { return Edit{Property: PropertyEnd, Time: t} }
func SetPublic(public bool) Edit   { return Edit{Property: PropertyVisibility, Public: public} }

// TouchesTime reports whether the edit moves the event in time.
func (ed Edit) TouchesTime() bool {
	return ed.Property == PropertyStart || ed.Property == PropertyEnd
}

// Apply returns e with the edit applied. A start or end edit takes the
// full instant from ed.Time; an all-day event edited this way becomes a
// timed event. ok is false when the property is not recognised.
func (ed Edit) Apply(e Event) (Event, bool) {
	return ed.apply(e, false)
}

// ApplyTimeOfDay is Apply for batch edits: a start or end edit keeps the
// event's own date and takes only the wall-clock time of ed.Time.
func (ed Edit) ApplyTimeOfDay(e Event) (Event, bool) {
	return ed.apply(e, true)
}

func (ed Edit) apply(e Event, keepDate bool) (Event, bool) {
	loc := e.Start.Location()
	switch ed.Property {
	case PropertySubject:
		e.Subject = ed.Text
	case PropertyDescription:
		e.Description = ed.Text
	case PropertyLocation:
		e.Location = ed.Text
	case PropertyVisibility:
		e.Public = ed.Public
	case PropertyStart:
		if keepDate {
			e.Start = WithClock(e.Start, ed.Time)
		} else {
			e.Start = ed.Time.In(loc)
		}
		e.AllDay = false
	case PropertyEnd:
		if keepDate {
			e.End = WithClock(e.LastDate(), ed.Time)
		} else {
			e.End = ed.Time.In(loc)
		}
		e.AllDay = false
	default:
		return e, false
	}
	return e, true
}
