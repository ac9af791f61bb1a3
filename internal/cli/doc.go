// Package cli implements the command-line interface for hh-events.
//
// The root command takes a date plus optional category, venue and start time
// filters, runs the query pipeline against the configured DuckDB store and
// prints the answer as text, JSON, iCalendar or a model-written summary. The
// schema subcommand prepares the store ahead of time.
package cli
