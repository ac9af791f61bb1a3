package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeAvailability struct {
	schema   bool
	count    int
	err      error
	countErr error
	calls    int
}

func (f *fakeAvailability) HasSchema(context.Context) (bool, error) {
	f.calls++
	return f.schema, f.err
}

func (f *fakeAvailability) CountByDate(context.Context, time.Time) (int, error) {
	f.calls++
	return f.count, f.countErr
}

func TestRoute(t *testing.T) {
	boom := errors.New("io error")
	tests := []struct {
		name    string
		store   *fakeAvailability
		want    Branch
		wantErr bool
	}{
		{"no schema", &fakeAvailability{}, NeedsExtraction, false},
		{"schema without rows", &fakeAvailability{schema: true}, NeedsExtraction, false},
		{"rows for date", &fakeAvailability{schema: true, count: 3}, HasData, false},
		{"schema check fails", &fakeAvailability{err: boom}, NeedsExtraction, true},
		{"count fails", &fakeAvailability{schema: true, countErr: boom}, NeedsExtraction, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Route(context.Background(), tt.store, time.Now())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Route() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, boom) {
				t.Errorf("store error should propagate unchanged, got %v", err)
			}
			if got != tt.want {
				t.Errorf("Route() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRoute_Idempotent(t *testing.T) {
	store := &fakeAvailability{schema: true, count: 1}
	day := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	first, _ := Route(context.Background(), store, day)
	second, _ := Route(context.Background(), store, day)
	if first != second {
		t.Errorf("Route() changed its answer: %s then %s", first, second)
	}
}

func TestBranchString(t *testing.T) {
	if NeedsExtraction.String() != "needs_extraction" || HasData.String() != "has_data" {
		t.Error("unexpected branch names")
	}
}
