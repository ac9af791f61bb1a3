// Package scraper fetches the Hamburg event calendar and extracts events from it.
//
// A Source returns the raw listing page for one date. The HTTP implementation,
// Scraper, asks the calendar for evening concerts across the whole city and
// identifies itself with a User-Agent and, when configured, a From header.
//
// Extract turns a listing page into a lazy sequence of events. Each
// article.listTeaser-event container contributes at most one event; containers
// without a title or with an unparseable date or time are skipped silently,
// since the calendar mixes real listings with promotional teasers.
package scraper
