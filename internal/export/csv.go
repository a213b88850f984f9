// Package export writes calendar events in the CSV layout accepted by
// common calendar importers.
package export

import (
	"bufio"
	"io"
	"strings"

	"vcal/internal/model"
)

// Header is the first row of every export.
var Header = []string{
	"Subject", "Start Date", "Start Time", "End Date", "End Time",
	"All Day", "Description", "Location", "Public",
}

// WriteCSV writes the header and one row per event, in the given order.
// All-day rows leave both time columns empty and report the last covered
// date as End Date.
func WriteCSV(w io.Writer, events []model.Event) error {
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, Header); err != nil {
		return err
	}
	for _, ev := range events {
		if err := writeRow(bw, Row(ev)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Row renders one event as CSV fields, before quoting.
func Row(ev model.Event) []string {
	startTime, endTime := "", ""
	endDate := ev.End.Format(model.DateLayout)
	if ev.AllDay {
		endDate = ev.LastDate().Format(model.DateLayout)
	} else {
		startTime = ev.Start.Format(model.TimeLayout)
		endTime = ev.End.Format(model.TimeLayout)
	}
	return []string{
		ev.Subject,
		ev.Start.Format(model.DateLayout),
		startTime,
		endDate,
		endTime,
		boolField(ev.AllDay),
		ev.Description,
		ev.Location,
		boolField(ev.Public),
	}
}

func writeRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(Escape(f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

// Escape wraps a field in double quotes when it holds a comma, quote or
// line break, doubling any quotes inside. Other fields are written as-is.
func Escape(field string) string {
	if !strings.ContainsAny(field, ",\"\n\r") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

func boolField(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
