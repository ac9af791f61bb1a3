// Package calendar renders events as iCalendar (RFC 5545) data.
package calendar

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Europe/Berlin must resolve on hosts without zoneinfo

	"github.com/pfrederiksen/hh-events/internal/event"
)

// DefaultDuration is assumed for every event, since listings carry no end time
const DefaultDuration = 3 * time.Hour

// Zone is the local time zone of listed start times
const Zone = "Europe/Berlin"

const prodID = "-//hh-events//hh-events//DE"

// GenerateICS generates an iCalendar (.ics) file for an event
func GenerateICS(evt event.Event) string {
	return GenerateBulkICS([]event.Event{evt}, "")
}

// GenerateBulkICS generates one calendar holding a VEVENT per event.
// Returns an empty string when events is empty. calName, when set, becomes
// the calendar's display name.
func GenerateBulkICS(events []event.Event, calName string) string {
	if len(events) == 0 {
		return ""
	}

	var ics strings.Builder
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:" + prodID + "\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if calName != "" {
		writeLine(&ics, "X-WR-CALNAME:"+escapeICS(calName))
	}

	now := time.Now().UTC()
	for _, evt := range events {
		writeVEvent(&ics, evt, now)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeVEvent(ics *strings.Builder, evt event.Event, stamp time.Time) {
	start := localStart(evt)
	end := start.Add(DefaultDuration)

	ics.WriteString("BEGIN:VEVENT\r\n")

	// UID - unique identifier for the event
	writeLine(ics, fmt.Sprintf("UID:%s@hh-events", evt.ID))

	// DTSTAMP - timestamp when this calendar entry was created
	writeLine(ics, "DTSTAMP:"+formatICSTime(stamp))

	// DTSTART and DTEND - listed start, fixed duration
	writeLine(ics, "DTSTART:"+formatICSTime(start))
	writeLine(ics, "DTEND:"+formatICSTime(end))

	writeLine(ics, "SUMMARY:"+escapeICS(evt.Name))

	var desc []string
	if event.Known(evt.Category) {
		desc = append(desc, *evt.Category)
	}
	if event.Known(evt.Description) {
		desc = append(desc, *evt.Description)
	}
	if len(desc) > 0 {
		writeLine(ics, "DESCRIPTION:"+escapeICS(strings.Join(desc, "\n\n")))
	}
	if event.Known(evt.Category) {
		writeLine(ics, "CATEGORIES:"+escapeICS(*evt.Category))
	}

	if event.Known(evt.Venue) {
		writeLine(ics, "LOCATION:"+escapeICS(*evt.Venue+", Hamburg"))
	}
	if event.Known(evt.URL) {
		writeLine(ics, "URL:"+*evt.URL)
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

// localStart interprets the event's date and time in Zone
func localStart(evt event.Event) time.Time {
	loc, err := time.LoadLocation(Zone)
	if err != nil {
		loc = time.UTC
	}
	return time.Date(evt.Date.Year(), evt.Date.Month(), evt.Date.Day(),
		evt.Time.Hour, evt.Time.Minute, evt.Time.Second, 0, loc)
}

// writeLine writes a content line, folded at 75 octets
func writeLine(ics *strings.Builder, line string) {
	limit := 75
	for len(line) > limit {
		cut := limit
		// don't split a UTF-8 sequence
		for cut > 0 && line[cut]&0xC0 == 0x80 {
			cut--
		}
		ics.WriteString(line[:cut] + "\r\n ")
		line = line[cut:]
		// continuation lines start with a space
		limit = 74
	}
	ics.WriteString(line + "\r\n")
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
