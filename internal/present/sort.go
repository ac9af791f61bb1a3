package present

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/hh-events/internal/event"
)

// sortEvents returns a copy of events ordered by start time, then by name
func sortEvents(events []event.Event) []event.Event {
	sorted := make([]event.Event, len(events))
	copy(sorted, events)

	sort.SliceStable(sorted, func(i, j int) bool {
		return compareByTime(sorted[i], sorted[j])
	})
	return sorted
}

// compareByTime reports whether i should come before j
func compareByTime(i, j event.Event) bool {
	if !i.Date.Equal(j.Date) {
		return i.Date.Before(j.Date)
	}
	if i.Time != j.Time {
		return i.Time.Before(j.Time)
	}
	return strings.ToLower(i.Name) < strings.ToLower(j.Name)
}
