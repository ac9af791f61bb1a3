// Package present renders the final event list for the user.
//
// Formats:
//   - text: a deterministic listing sorted by start time, then name
//   - json: the text rendering plus the events as records
//   - ics: an iCalendar file with one VEVENT per event
//   - summary: prose written by the augmentation provider, falling back to text
//
// An empty list always renders as a short apology that there are no suitable
// events, without offering anything further.
package present
