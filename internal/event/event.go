package event

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical date format used for IDs, storage and requests.
const DateLayout = "2006-01-02"

// Unknown is how a missing optional field is rendered to humans.
const Unknown = "unknown"

// Event represents a single listing from the event calendar
type Event struct {
	ID          string
	Name        string
	Date        time.Time // midnight UTC
	Time        Clock
	Venue       *string
	Category    *string
	Description *string
	URL         *string
}

// Record is the flat, JSON-friendly form of an Event. Unknown fields are
// serialized as null rather than omitted.
type Record struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Venue       *string `json:"venue"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
}

// GenerateID creates a deterministic ID for an event from its identity triple
func GenerateID(name string, date time.Time, clock Clock) string {
	h := sha256.New()
	h.Write([]byte(name + "|" + date.Format(DateLayout) + "|" + clock.String()))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// NewEvent creates a new Event with its ID populated
func NewEvent(name string, date time.Time, clock Clock) Event {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return Event{
		ID:   GenerateID(name, day, clock),
		Name: name,
		Date: day,
		Time: clock,
	}
}

// Record converts the event to its flat form
func (e Event) Record() Record {
	return Record{
		ID:          e.ID,
		Name:        e.Name,
		Date:        e.Date.Format(DateLayout),
		Time:        e.Time.String(),
		Venue:       e.Venue,
		Category:    e.Category,
		Description: e.Description,
		URL:         e.URL,
	}
}

// Records converts a batch of events
func Records(events []Event) []Record {
	out := make([]Record, 0, len(events))
	for _, e := range events {
		out = append(out, e.Record())
	}
	return out
}

// StartsAt combines Date and Time into a single timestamp without a zone.
func (e Event) StartsAt() time.Time {
	return time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(),
		e.Time.Hour, e.Time.Minute, e.Time.Second, 0, time.UTC)
}

func (e Event) String() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s.",
		e.Name, e.Date.Format(DateLayout), e.Time,
		Value(e.Venue), Value(e.Category), Value(e.Description), Value(e.URL))
}

// Str returns a pointer to s, or nil when s is empty after trimming.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences an optional field, rendering nil as Unknown
func Value(p *string) string {
	if p == nil {
		return Unknown
	}
	return *p
}

// Known reports whether an optional field carries a value.
func Known(p *string) bool {
	return p != nil
}
