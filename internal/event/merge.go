package event

import "strings"

// Categories is the closed set of categories the augmentation service may assign.
var Categories = []string{
	"Klassik",
	"Jazz, Blues, Funk",
	"Rock, Indie, Metal",
	"HipHop, RnB, Soul",
	"Elektro, Techno, House",
	"Pop, Schlager",
}

// IsCategory reports whether s is one of Categories (exact match).
func IsCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// Patch is a partial update produced by the augmentation service.
// Only Category and Description may be changed; ID selects the event.
type Patch struct {
	ID          string  `json:"id" validate:"required"`
	Category    *string `json:"category,omitempty" validate:"omitempty,eventcategory"`
	Description *string `json:"description,omitempty"`
}

// Merge folds incoming into existing using coalesce-new-over-old: a known
// incoming value overwrites, an unknown one never erases. Identity fields
// (ID, Name, Date, Time) always come from existing.
func Merge(existing, incoming Event) Event {
	merged := existing
	merged.Venue = coalesce(incoming.Venue, existing.Venue)
	merged.Category = coalesce(incoming.Category, existing.Category)
	merged.Description = coalesce(incoming.Description, existing.Description)
	merged.URL = coalesce(incoming.URL, existing.URL)
	return merged
}

// WithPatch returns a copy of e with the patch's present fields applied.
// Empty patch values are treated as absent.
func (e Event) WithPatch(p Patch) Event {
	if p.Category != nil && strings.TrimSpace(*p.Category) != "" {
		e.Category = Str(*p.Category)
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) != "" {
		e.Description = Str(*p.Description)
	}
	return e
}

// ApplyPatches applies patches in order to a copy of events, matching by ID.
// Unmatched patch IDs are ignored; when several patches target the same event
// the later one wins field by field. Returns the patched batch and the number
// of patches that matched an event.
func ApplyPatches(events []Event, patches []Patch) ([]Event, int) {
	out := make([]Event, len(events))
	copy(out, events)

	index := make(map[string]int, len(out))
	for i, e := range out {
		index[e.ID] = i
	}

	applied := 0
	for _, p := range patches {
		i, ok := index[p.ID]
		if !ok {
			continue
		}
		out[i] = out[i].WithPatch(p)
		applied++
	}
	return out, applied
}

// Dedupe collapses events sharing an ID into one, merging later records over
// earlier ones. First-seen order is preserved.
func Dedupe(events []Event) []Event {
	index := make(map[string]int, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if i, ok := index[e.ID]; ok {
			out[i] = Merge(out[i], e)
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

func coalesce(newValue, oldValue *string) *string {
	if newValue != nil {
		return newValue
	}
	return oldValue
}
