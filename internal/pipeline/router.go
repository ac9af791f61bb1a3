package pipeline

import (
	"context"
	"time"
)

// Branch is the Router's decision for a date
type Branch int

const (
	// NeedsExtraction: the store has no rows (or no schema) for the date
	NeedsExtraction Branch = iota
	// HasData: at least one row is stored for the date
	HasData
)

func (b Branch) String() string {
	switch b {
	case NeedsExtraction:
		return "needs_extraction"
	case HasData:
		return "has_data"
	default:
		return "unknown"
	}
}

// Availability is the read-only view of the store the Router needs
type Availability interface {
	HasSchema(ctx context.Context) (bool, error)
	CountByDate(ctx context.Context, date time.Time) (int, error)
}

// Route decides whether date must be extracted. It only reads; store errors
// are returned as they are and never mean NeedsExtraction.
func Route(ctx context.Context, store Availability, date time.Time) (Branch, error) {
	exists, err := store.HasSchema(ctx)
	if err != nil {
		return NeedsExtraction, err
	}
	if !exists {
		return NeedsExtraction, nil
	}

	n, err := store.CountByDate(ctx, date)
	if err != nil {
		return NeedsExtraction, err
	}
	if n == 0 {
		return NeedsExtraction, nil
	}
	return HasData, nil
}
