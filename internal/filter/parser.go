package filter

import (
	"fmt"
	"strings"

	"github.com/pfrederiksen/hh-events/internal/event"
)

// ParseCategory resolves user input to one of event.Categories.
//
// Supported inputs:
//   - "" - no category filter
//   - "Rock, Indie, Metal" or "rock,indie,metal" - the full category name
//   - "jazz" or "Techno" - any single genre within a category
//
// Matching is case-insensitive and ignores whitespace around commas.
func ParseCategory(input string) (string, error) {
	key := compact(input)
	if key == "" {
		return "", nil
	}

	for _, c := range event.Categories {
		if compact(c) == key {
			return c, nil
		}
	}

	for _, c := range event.Categories {
		for _, genre := range strings.Split(c, ",") {
			if compact(genre) == key {
				return c, nil
			}
		}
	}

	return "", fmt.Errorf("unknown category %q (known: %s)", strings.TrimSpace(input), strings.Join(event.Categories, " | "))
}

// ParseAfter parses an "HH:MM" lower bound for start times
func ParseAfter(input string) (*event.Clock, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	c, err := event.ParseClock(input)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// compact normalizes s and drops spaces next to commas
func compact(s string) string {
	parts := strings.Split(NormalizeCategory(s), ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, ",")
}
