// Package filter narrows a day's events to what the user asked for.
//
// The main criterion is the category: an event is kept when its category,
// compared case-insensitively and with whitespace normalized, equals the
// requested one. Events with an unknown category never match a category
// filter. Two optional criteria narrow further:
//   - Venues (case-insensitive substring match)
//   - After (events starting at or after a time of day)
//
// An empty filter is the identity: Apply returns its input unchanged.
//
// Example usage:
//
//	f := filter.NewFilter()
//	f.Category = "rock, indie, metal"
//	filtered := f.Apply(events)
package filter

import (
	"fmt"
	"strings"

	"github.com/pfrederiksen/hh-events/internal/event"
)

// Filter represents event filtering criteria
type Filter struct {
	// Category must equal the event category after normalization
	Category string `json:"category,omitempty"`

	// Venue filtering (case-insensitive substring match)
	Venues []string `json:"venues,omitempty"`

	// Earliest start time, inclusive
	After *event.Clock `json:"after,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
// The filter will match all events until criteria are added.
func NewFilter() *Filter {
	return &Filter{
		Venues: []string{},
	}
}

// ForCategory returns a filter on category alone
func ForCategory(category string) *Filter {
	f := NewFilter()
	f.Category = category
	return f
}

// NormalizeCategory lower-cases s, collapses whitespace runs and trims.
func NormalizeCategory(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// IsEmpty checks if the filter has any active criteria.
// Returns true if the filter would match all events.
func (f *Filter) IsEmpty() bool {
	return NormalizeCategory(f.Category) == "" &&
		len(f.Venues) == 0 &&
		f.After == nil
}

// Matches checks if an event matches all active filter criteria.
// An empty filter matches all events.
func (f *Filter) Matches(evt event.Event) bool {
	// Empty filter matches all events
	if f.IsEmpty() {
		return true
	}

	// Check category (normalized equality ignoring spaces around commas,
	// unknown never matches)
	if want := compact(f.Category); want != "" {
		if evt.Category == nil || compact(*evt.Category) != want {
			return false
		}
	}

	// Check venue (case-insensitive substring match)
	if len(f.Venues) > 0 {
		if evt.Venue == nil {
			return false
		}
		matched := false
		venueLower := strings.ToLower(*evt.Venue)
		for _, venue := range f.Venues {
			if strings.Contains(venueLower, strings.ToLower(venue)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	// Check start time
	if f.After != nil && evt.Time.Before(*f.After) {
		return false
	}

	return true
}

// Apply applies the filter to a list of events and returns only matching events.
// If the filter is empty, returns the original list unchanged.
// Otherwise, returns a new slice containing only events that match, in order.
func (f *Filter) Apply(events []event.Event) []event.Event {
	if f == nil || f.IsEmpty() {
		return events
	}

	filtered := make([]event.Event, 0, len(events))
	for _, evt := range events {
		if f.Matches(evt) {
			filtered = append(filtered, evt)
		}
	}

	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Returns "No active filters" if the filter is empty.
// Format: "Category: Rock, Indie, Metal | Venues: Markthalle | After: 20:00"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if strings.TrimSpace(f.Category) != "" {
		parts = append(parts, fmt.Sprintf("Category: %s", strings.TrimSpace(f.Category)))
	}

	if len(f.Venues) > 0 {
		parts = append(parts, fmt.Sprintf("Venues: %s", strings.Join(f.Venues, ", ")))
	}

	if f.After != nil {
		parts = append(parts, fmt.Sprintf("After: %s", f.After))
	}

	return strings.Join(parts, " | ")
}
