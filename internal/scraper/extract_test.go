package scraper

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/hh-events/internal/event"
)

const pageURL = "https://www.hamburg-tourism.de/sehen-erleben/veranstaltungen/veranstaltungskalender/?filter%5Bdate%5D=20.02.2026%2C20.02.2026"

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/listing.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return string(data)
}

func TestExtract_Fixture(t *testing.T) {
	events, err := ExtractAll(strings.NewReader(loadFixture(t)), pageURL)
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(events), events)
	}

	first := events[0]
	if first.Name != "Warkings + Visions Of Atlantis - Pirates & Kings Tour 2026" {
		t.Errorf("unexpected name %q", first.Name)
	}
	if got := first.Date.Format(event.DateLayout); got != "2026-02-20" {
		t.Errorf("unexpected date %s", got)
	}
	if first.Time != (event.Clock{Hour: 18, Minute: 45}) {
		t.Errorf("unexpected time %s", first.Time)
	}
	if event.Value(first.Venue) != "Markthalle Hamburg" {
		t.Errorf("venue should be whitespace-normalized, got %q", event.Value(first.Venue))
	}
	if event.Value(first.Description) != "Symphonic Metal trifft auf Power Metal." {
		t.Errorf("unexpected description %q", event.Value(first.Description))
	}
	wantURL := "https://www.hamburg-tourism.de/sehen-erleben/veranstaltungen/veranstaltungskalender/konzert/warkings-visions-of-atlantis/"
	if event.Value(first.URL) != wantURL {
		t.Errorf("relative link not resolved: %q", event.Value(first.URL))
	}
	if first.ID != event.GenerateID(first.Name, first.Date, first.Time) {
		t.Error("ID should derive from name, date and time")
	}
	if first.Category != nil {
		t.Errorf("category should be unknown, got %q", *first.Category)
	}

	second := events[1]
	if second.Name != "NDR Elbphilharmonie Orchester" {
		t.Errorf("unexpected name %q", second.Name)
	}
	if second.Time != (event.Clock{Hour: 20}) {
		t.Errorf("markers out of order should still parse, got %s", second.Time)
	}
	if !strings.HasPrefix(event.Value(second.URL), "https://www.elbphilharmonie.de/") {
		t.Errorf("absolute link should pass through, got %q", event.Value(second.URL))
	}
	if second.Description != nil {
		t.Errorf("missing description should be unknown, got %q", *second.Description)
	}
}

func TestExtract_Containers(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantNames []string
	}{
		{
			name:      "no containers",
			html:      `<html><body><p>Keine Veranstaltungen</p></body></html>`,
			wantNames: nil,
		},
		{
			name: "missing date drops only that container",
			html: `
				<article class="listTeaser-event"><div class="listTeaser-event__text"><h3>A</h3>
					<ul class="listTeaser-event__text__infos"><li><span class="icon-clock"></span>19:00</li></ul></div></article>
				<article class="listTeaser-event"><div class="listTeaser-event__text"><h3>B</h3>
					<ul class="listTeaser-event__text__infos">
						<li><span class="icon-calendar"></span>21.02.2026</li>
						<li><span class="icon-clock"></span>19:00</li></ul></div></article>`,
			wantNames: []string{"B"},
		},
		{
			name: "missing title",
			html: `
				<article class="listTeaser-event"><div class="listTeaser-event__text">
					<ul class="listTeaser-event__text__infos">
						<li><span class="icon-calendar"></span>21.02.2026</li>
						<li><span class="icon-clock"></span>19:00</li></ul></div></article>`,
			wantNames: nil,
		},
		{
			name: "no matching markers",
			html: `
				<article class="listTeaser-event"><div class="listTeaser-event__text"><h3>C</h3>
					<ul class="listTeaser-event__text__infos"><li><span class="icon-ticket"></span>20 EUR</li></ul></div></article>`,
			wantNames: nil,
		},
		{
			name: "seconds in time",
			html: `
				<article class="listTeaser-event"><div class="listTeaser-event__text"><h3>D</h3>
					<ul class="listTeaser-event__text__infos">
						<li><span class="icon-calendar"></span>21.02.2026</li>
						<li><span class="icon-clock"></span>19:30:00</li></ul></div></article>`,
			wantNames: []string{"D"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := ExtractAll(strings.NewReader(tt.html), pageURL)
			if err != nil {
				t.Fatalf("ExtractAll failed: %v", err)
			}
			var names []string
			for _, e := range events {
				names = append(names, e.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.wantNames, ",") {
				t.Errorf("got names %v, want %v", names, tt.wantNames)
			}
		})
	}
}

func TestExtract_LastMarkerWins(t *testing.T) {
	html := `
		<article class="listTeaser-event"><div class="listTeaser-event__text"><h3>E</h3>
			<ul class="listTeaser-event__text__infos">
				<li><span class="icon-calendar"></span>21.02.2026</li>
				<li><span class="icon-located"></span>Docks</li>
				<li><span class="icon-clock"></span>19:00</li>
				<li><span class="icon-located"></span>Grosse Freiheit 36</li>
				<li><span class="icon-located"></span>   </li>
			</ul></div></article>`

	events, err := ExtractAll(strings.NewReader(html), pageURL)
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if got := event.Value(events[0].Venue); got != "Grosse Freiheit 36" {
		t.Errorf("venue = %q, want last non-empty entry", got)
	}
}

func TestExtract_Restartable(t *testing.T) {
	seq, err := Extract(strings.NewReader(loadFixture(t)), pageURL)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != b || a != 2 {
		t.Errorf("ranging twice gave %d and %d events, want 2 both times", a, b)
	}

	// Stopping early must not panic.
	for e := range seq {
		if e.Date.Equal(time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)) {
			break
		}
	}
}

func TestExtract_InvalidSourceURL(t *testing.T) {
	if _, err := Extract(strings.NewReader("<html></html>"), "://bad"); err == nil {
		t.Error("expected error for invalid source URL")
	}
}
