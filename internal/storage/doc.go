// Package storage persists events in a DuckDB table keyed by event ID.
//
// Writes are upserts: a new ID inserts a row, an existing ID merges the
// incoming optional fields over the stored ones without ever replacing a known
// value with NULL. Name, date and time define the ID and are never updated.
// The default database location is data/events.duckdb; a leading ~/ is
// expanded to the user's home directory.
package storage
