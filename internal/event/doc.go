// Package event provides types and functions for managing calendar events.
//
// The event package handles event representation, identification, and merging.
// Each event is assigned a deterministic SHA256-based ID generated from its name,
// date and start time, enabling reliable upserts across crawls. Optional fields
// are pointers: nil means "unknown", which is distinct from an empty string and is
// never allowed to overwrite a known value when two records are merged.
package event
