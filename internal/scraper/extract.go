package scraper

import (
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pfrederiksen/hh-events/internal/event"
	"github.com/pfrederiksen/hh-events/internal/metrics"
)

// Selectors for the calendar's listing markup
const (
	containerSelector   = "article.listTeaser-event"
	titleSelector       = "div.listTeaser-event__text > h3"
	infoSelector        = "ul.listTeaser-event__text__infos li"
	descriptionSelector = "div.listTeaser-event__text > p"
	linkSelector        = "a.listTeaser-event__link[href]"
)

// Info list entries are tagged by an icon span
const (
	markerDate  = ".icon-calendar"
	markerTime  = ".icon-clock"
	markerVenue = ".icon-located"
)

// Extract parses a listing page and returns its events in document order.
//
// The returned sequence is lazy and can be ranged over more than once. Only a
// page that cannot be parsed at all, or an invalid sourceURL, is an error;
// individual malformed containers are skipped.
func Extract(r io.Reader, sourceURL string) (iter.Seq[event.Event], error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing source URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	return func(yield func(event.Event) bool) {
		doc.Find(containerSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			evt, ok := parseContainer(sel, base)
			if !ok {
				metrics.ContainersTotal.WithLabelValues("skipped").Inc()
				return true
			}
			metrics.ContainersTotal.WithLabelValues("extracted").Inc()
			return yield(evt)
		})
	}, nil
}

// ExtractAll is Extract collected into a slice.
func ExtractAll(r io.Reader, sourceURL string) ([]event.Event, error) {
	seq, err := Extract(r, sourceURL)
	if err != nil {
		return nil, err
	}
	var events []event.Event
	for evt := range seq {
		events = append(events, evt)
	}
	return events, nil
}

// info holds the raw values of one container's info list
type info struct {
	date  string
	time  string
	venue string
	found bool
}

func parseContainer(sel *goquery.Selection, base *url.URL) (event.Event, bool) {
	name := cleanText(spacedText(sel.Find(titleSelector).First()))
	if name == "" {
		return event.Event{}, false
	}

	inf := parseInfoList(sel)
	if !inf.found {
		return event.Event{}, false
	}

	date := event.ParseDate(inf.date)
	if date.IsZero() {
		return event.Event{}, false
	}
	clock, err := event.ParseClock(inf.time)
	if err != nil {
		return event.Event{}, false
	}

	evt := event.NewEvent(name, date, clock)
	evt.Venue = event.Str(inf.venue)
	evt.Description = event.Str(cleanText(spacedText(sel.Find(descriptionSelector).First())))
	evt.URL = resolveLink(sel, base)
	return evt, true
}

// parseInfoList reads the date, time and venue entries. Marker order does not
// matter; a later entry with the same marker replaces an earlier one and
// entries without text are ignored.
func parseInfoList(sel *goquery.Selection) info {
	var out info
	sel.Find(infoSelector).Each(func(_ int, li *goquery.Selection) {
		text := cleanText(spacedText(li))
		if text == "" {
			return
		}

		switch {
		case li.Find(markerDate).Length() > 0:
			out.date = text
		case li.Find(markerTime).Length() > 0:
			out.time = text
		case li.Find(markerVenue).Length() > 0:
			out.venue = text
		default:
			return
		}
		out.found = true
	})
	return out
}

func resolveLink(sel *goquery.Selection, base *url.URL) *string {
	href, ok := sel.Find(linkSelector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	return event.Str(base.ResolveReference(ref).String())
}

// spacedText joins the selection's text nodes with single spaces, so that
// adjacent elements do not run together.
func spacedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// cleanText collapses runs of whitespace and trims the result
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
