package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver

	"github.com/pfrederiksen/hh-events/internal/event"
	"github.com/pfrederiksen/hh-events/internal/logger"
	"github.com/pfrederiksen/hh-events/internal/metrics"
)

// ErrUnavailable wraps every I/O-level failure of the store.
var ErrUnavailable = errors.New("storage unavailable")

// TableName is the single table backing the store
const TableName = "events"

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		"date" DATE NOT NULL,
		"time" TEXT NOT NULL,
		venue TEXT,
		category TEXT,
		description TEXT,
		url TEXT
	)`

const upsertSQL = `
	INSERT INTO events (id, name, "date", "time", venue, category, description, url)
	VALUES (?, ?, CAST(? AS DATE), ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		venue = COALESCE(EXCLUDED.venue, venue),
		category = COALESCE(EXCLUDED.category, category),
		description = COALESCE(EXCLUDED.description, description),
		url = COALESCE(EXCLUDED.url, url)`

// Storage handles persistence of events
type Storage struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the DuckDB database at path
func New(path string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	// Create data directory if it doesn't exist
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating data directory: %w", ErrUnavailable, err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("%w: connecting to database: %w", ErrUnavailable, err)
	}

	return &Storage{db: db, path: path}, nil
}

// Path returns the resolved database file location
func (s *Storage) Path() string {
	return s.path
}

// Close releases the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the events table if it does not exist. Concurrent
// callers racing on creation all succeed.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	defer metrics.ObserveStore("ensure_schema", time.Now())

	_, err := s.db.ExecContext(ctx, createTableSQL)
	if err == nil {
		return nil
	}

	// Another creator may have won the race.
	if exists, herr := s.HasSchema(ctx); herr == nil && exists {
		logger.Debug("Schema created concurrently", logger.Fields{"error": err.Error()})
		return nil
	}

	metrics.StoreErrors.WithLabelValues("ensure_schema").Inc()
	return fmt.Errorf("%w: creating schema: %w", ErrUnavailable, err)
}

// HasSchema reports whether the events table exists
func (s *Storage) HasSchema(ctx context.Context) (bool, error) {
	defer metrics.ObserveStore("has_schema", time.Now())

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", TableName,
	).Scan(&n)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("has_schema").Inc()
		return false, fmt.Errorf("%w: checking schema: %w", ErrUnavailable, err)
	}
	return n > 0, nil
}

// CountByDate returns the number of stored events on date. The schema must exist.
func (s *Storage) CountByDate(ctx context.Context, date time.Time) (int, error) {
	defer metrics.ObserveStore("count_by_date", time.Now())

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE "date" = CAST(? AS DATE)`, date.Format(event.DateLayout),
	).Scan(&n)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("count_by_date").Inc()
		return 0, fmt.Errorf("%w: counting events: %w", ErrUnavailable, err)
	}
	return n, nil
}

// Upsert inserts new events and merges known fields into existing ones, all
// in one transaction. Duplicate IDs within the batch are merged first.
func (s *Storage) Upsert(ctx context.Context, events []event.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	defer metrics.ObserveStore("upsert", time.Now())
	defer func() {
		if err != nil {
			metrics.StoreErrors.WithLabelValues("upsert").Inc()
		}
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("%w: preparing upsert: %w", ErrUnavailable, err)
	}
	defer closeQuietly(stmt)

	batch := event.Dedupe(events)
	for _, e := range batch {
		if _, err = stmt.ExecContext(ctx,
			e.ID, e.Name, e.Date.Format(event.DateLayout), e.Time.String(),
			nullable(e.Venue), nullable(e.Category), nullable(e.Description), nullable(e.URL),
		); err != nil {
			return fmt.Errorf("%w: upserting event %s: %w", ErrUnavailable, e.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing upsert: %w", ErrUnavailable, err)
	}

	metrics.UpsertedRows.Add(float64(len(batch)))
	logger.Debug("Upserted events", logger.Fields{"count": len(batch)})
	return nil
}

// LoadByDate returns every stored event on date, ordered by time then name.
// The schema must exist.
func (s *Storage) LoadByDate(ctx context.Context, date time.Time) ([]event.Event, error) {
	defer metrics.ObserveStore("load_by_date", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, "date", "time", venue, category, description, url
		FROM events
		WHERE "date" = CAST(? AS DATE)
		ORDER BY "time", name`, date.Format(event.DateLayout))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load_by_date").Inc()
		return nil, fmt.Errorf("%w: loading events: %w", ErrUnavailable, err)
	}
	defer closeQuietly(rows)

	events := make([]event.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			metrics.StoreErrors.WithLabelValues("load_by_date").Inc()
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		metrics.StoreErrors.WithLabelValues("load_by_date").Inc()
		return nil, fmt.Errorf("%w: iterating events: %w", ErrUnavailable, err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		e     event.Event
		day   time.Time
		clock string
	)
	var venue, category, description, link sql.NullString
	if err := rows.Scan(&e.ID, &e.Name, &day, &clock, &venue, &category, &description, &link); err != nil {
		return event.Event{}, fmt.Errorf("%w: scanning event: %w", ErrUnavailable, err)
	}

	c, err := event.ParseClock(clock)
	if err != nil {
		return event.Event{}, fmt.Errorf("stored event %s: %w", e.ID, err)
	}

	e.Date = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	e.Time = c
	e.Venue = fromNull(venue)
	e.Category = fromNull(category)
	e.Description = fromNull(description)
	e.URL = fromNull(link)
	return e, nil
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

type closer interface {
	Close() error
}

// closeQuietly closes c, logging rather than returning the error
func closeQuietly(c closer) {
	if err := c.Close(); err != nil {
		logger.WarnErr("Failed to close database resource", nil, err)
	}
}
