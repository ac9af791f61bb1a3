package event

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Clock is a local time of day without a date or zone.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock parses "HH:MM" or "HH:MM:SS" in 24-hour notation.
func ParseClock(text string) (Clock, error) {
	text = strings.TrimSpace(text)

	// Try "18:45:00" format
	t, err := time.Parse("15:04:05", text)
	if err == nil {
		return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
	}

	// Try "18:45" format
	t, err = time.Parse("15:04", text)
	if err == nil {
		return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
	}

	return Clock{}, fmt.Errorf("invalid time of day %q", text)
}

// String formats the clock as HH:MM, or HH:MM:SS when seconds are set.
func (c Clock) String() string {
	if c.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Before reports whether c is earlier in the day than other.
func (c Clock) Before(other Clock) bool {
	if c.Hour != other.Hour {
		return c.Hour < other.Hour
	}
	if c.Minute != other.Minute {
		return c.Minute < other.Minute
	}
	return c.Second < other.Second
}

// dayFirstDate finds the first day-first date inside longer text
var dayFirstDate = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{2,4}`)

// ParseDate parses the calendar's day-first numeric dates into a time.Time.
// Returns time.Time{} (zero value) if parsing fails.
// Supports formats: "20.02.2026", "2.2.2026", "20.02.26". For ranges such as
// "20.02.2026 - 22.02.2026" or prefixed text like "Fr, 20.02.2026" the first
// date is used.
func ParseDate(dateText string) time.Time {
	dateText = strings.TrimSpace(dateText)
	if dateText == "" {
		return time.Time{}
	}
	if m := dayFirstDate.FindString(dateText); m != "" {
		dateText = m
	}

	// Try "20.02.2026" and "2.2.2026" formats
	t, err := time.Parse("2.1.2006", dateText)
	if err == nil {
		return t
	}

	// Try "20.02.26" format
	t, err = time.Parse("2.1.06", dateText)
	if err == nil {
		return t
	}

	return time.Time{}
}

// ParseISODate parses a "YYYY-MM-DD" request date.
func ParseISODate(text string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", text, err)
	}
	return t, nil
}

// FormatDayFirst renders a date the way the calendar site expects it in queries.
func FormatDayFirst(t time.Time) string {
	return t.Format("02.01.2006")
}
