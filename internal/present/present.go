package present

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pfrederiksen/hh-events/internal/calendar"
	"github.com/pfrederiksen/hh-events/internal/event"
	"github.com/pfrederiksen/hh-events/internal/logger"
	"github.com/pfrederiksen/hh-events/internal/scraper"
	"github.com/pfrederiksen/hh-events/internal/storage"
)

// Format specifies the output format
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatICS     Format = "ics"
	FormatSummary Format = "summary"
)

// Formats lists every supported format
var Formats = []Format{FormatText, FormatJSON, FormatICS, FormatSummary}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

// Summarizer writes prose about a batch of events
type Summarizer interface {
	Summarize(ctx context.Context, date time.Time, records []event.Record) (string, error)
}

// Presenter renders events in one format
type Presenter struct {
	format     Format
	summarizer Summarizer
	verbose    bool
}

// New creates a Presenter. summarizer is only used by FormatSummary and may be nil.
func New(format Format, summarizer Summarizer, verbose bool) *Presenter {
	return &Presenter{format: format, summarizer: summarizer, verbose: verbose}
}

// Format returns the presenter's output format
func (p *Presenter) Format() Format {
	return p.format
}

// jsonOutput is the document written by FormatJSON
type jsonOutput struct {
	Text   string         `json:"text"`
	Date   string         `json:"date"`
	Count  int            `json:"count"`
	Events []event.Record `json:"events"`
}

// Render renders events for date
func (p *Presenter) Render(ctx context.Context, date time.Time, events []event.Event) (string, error) {
	sorted := sortEvents(events)

	switch p.format {
	case FormatText, "":
		return Text(date, sorted, p.verbose), nil
	case FormatJSON:
		return JSON(date, sorted)
	case FormatICS:
		if len(sorted) == 0 {
			return NoEvents(date), nil
		}
		return calendar.GenerateBulkICS(sorted, "Hamburg "+date.Format(event.DateLayout)), nil
	case FormatSummary:
		return p.summary(ctx, date, sorted), nil
	default:
		return "", fmt.Errorf("unknown format: %s", p.format)
	}
}

func (p *Presenter) summary(ctx context.Context, date time.Time, events []event.Event) string {
	if len(events) == 0 {
		return NoEvents(date)
	}
	if p.summarizer == nil {
		return Text(date, events, p.verbose)
	}

	text, err := p.summarizer.Summarize(ctx, date, event.Records(events))
	if err == nil && strings.TrimSpace(text) != "" {
		return text
	}
	if err == nil {
		err = errors.New("empty summary")
	}
	logger.WarnErr("Summary unavailable, falling back to text", logger.Fields{
		"date":   date.Format(event.DateLayout),
		"events": len(events),
	}, err)
	return Text(date, events, p.verbose)
}

// NoEvents is the message for an empty result
func NoEvents(date time.Time) string {
	return fmt.Sprintf("Sorry, there are no suitable events on %s.", longDate(date))
}

// Apology turns a fatal pipeline error into a user-facing message
func Apology(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, scraper.ErrFetchFailed):
		return "Sorry, the event calendar could not be reached right now."
	case errors.Is(err, storage.ErrUnavailable):
		return "Sorry, the event store is not available right now."
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "Sorry, looking up events took too long."
	default:
		return "Sorry, the events could not be looked up."
	}
}

// Text renders events as a plain listing
func Text(date time.Time, events []event.Event, verbose bool) string {
	if len(events) == 0 {
		return NoEvents(date)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Events in Hamburg on %s\n", longDate(date))

	for _, evt := range events {
		fmt.Fprintf(&b, "\n%s  %s\n", evt.Time, evt.Name)
		fmt.Fprintf(&b, "       Venue: %s\n", event.Value(evt.Venue))
		fmt.Fprintf(&b, "       Category: %s\n", event.Value(evt.Category))
		if event.Known(evt.Description) {
			fmt.Fprintf(&b, "       %s\n", *evt.Description)
		}
		if event.Known(evt.URL) {
			fmt.Fprintf(&b, "       %s\n", *evt.URL)
		}
		if verbose {
			fmt.Fprintf(&b, "       ID: %s\n", evt.ID)
		}
	}

	label := "events"
	if len(events) == 1 {
		label = "event"
	}
	fmt.Fprintf(&b, "\nTotal: %d %s\n", len(events), label)
	return b.String()
}

// JSON renders the text listing and the records as one JSON document
func JSON(date time.Time, events []event.Event) (string, error) {
	out := jsonOutput{
		Text:   Text(date, events, false),
		Date:   date.Format(event.DateLayout),
		Count:  len(events),
		Events: event.Records(events),
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return "", fmt.Errorf("encoding JSON: %w", err)
	}
	return buf.String(), nil
}

// longDate formats a date as "Friday, 20.02.2026"
func longDate(date time.Time) string {
	return date.Weekday().String() + ", " + event.FormatDayFirst(date)
}
