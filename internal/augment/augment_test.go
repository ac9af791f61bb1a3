package augment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pfrederiksen/hh-events/internal/config"
	"github.com/pfrederiksen/hh-events/internal/event"
)

var day = time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

// memStore keeps events in memory and records upserts
type memStore struct {
	events  []event.Event
	upserts [][]event.Event
	loadErr error
}

func (m *memStore) LoadByDate(_ context.Context, date time.Time) ([]event.Event, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []event.Event
	for _, e := range m.events {
		if e.Date.Equal(date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Upsert(_ context.Context, events []event.Event) error {
	m.upserts = append(m.upserts, events)
	return nil
}

// scriptedProvider returns one scripted reply per call, repeating the last
type scriptedProvider struct {
	replies []reply
	calls   int
	seen    [][]event.Record
}

type reply struct {
	patches []event.Patch
	err     error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Patches(_ context.Context, records []event.Record) ([]event.Patch, error) {
	p.seen = append(p.seen, records)
	r := p.replies[min(p.calls, len(p.replies)-1)]
	p.calls++
	return r.patches, r.err
}

func (p *scriptedProvider) Summarize(context.Context, time.Time, []event.Record) (string, error) {
	return "", ErrNoSummarizer
}

func testAugmentConfig() config.AugmentConfig {
	cfg := config.Default().Augment
	cfg.RetryInterval = 0
	return cfg
}

func storedEvents() []event.Event {
	a := event.NewEvent("Warkings + Visions Of Atlantis", day, event.Clock{Hour: 18, Minute: 45})
	a.Venue = event.Str("Markthalle")
	b := event.NewEvent("NDR Elbphilharmonie Orchester", day, event.Clock{Hour: 20})
	b.Category = event.Str("Klassik")
	return []event.Event{a, b}
}

func invalid(n int) error {
	return fmt.Errorf("%w: attempt %d", ErrInvalidPatches, n)
}

func TestRequestPatches_RetryCap(t *testing.T) {
	provider := &scriptedProvider{replies: []reply{{err: invalid(1)}}}
	a := New(&memStore{}, provider, testAugmentConfig())

	patches, attempts, err := a.RequestPatches(context.Background(), event.Records(storedEvents()))

	if provider.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", provider.calls)
	}
	if len(attempts) != 3 {
		t.Errorf("expected 3 recorded attempts, got %d", len(attempts))
	}
	if !errors.Is(err, ErrInvalidPatches) {
		t.Errorf("expected last error to be ErrInvalidPatches, got %v", err)
	}
	if len(patches) != 0 {
		t.Errorf("expected no patches, got %v", patches)
	}
}

func TestRequestPatches_OtherErrorIsPermanent(t *testing.T) {
	boom := errors.New("boom")
	provider := &scriptedProvider{replies: []reply{{err: boom}}}
	a := New(&memStore{}, provider, testAugmentConfig())

	_, attempts, err := a.RequestPatches(context.Background(), event.Records(storedEvents()))

	if provider.calls != 1 {
		t.Errorf("expected a single call, got %d", provider.calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected the provider error, got %v", err)
	}
	if errors.Is(err, ErrInvalidPatches) {
		t.Error("a plain provider error must not be reported as an invalid reply")
	}
	if len(attempts) != 1 || attempts[0].Result != "failed" {
		t.Errorf("attempts = %+v, want one failed attempt", attempts)
	}
}

func TestAugment_Outcomes(t *testing.T) {
	events := storedEvents()
	rock := event.Patch{ID: events[0].ID, Category: event.Str("Rock, Indie, Metal")}

	tests := []struct {
		name        string
		replies     []reply
		wantOutcome Outcome
		wantCalls   int
		wantApplied int
		wantCat     string
	}{
		{
			name:        "valid patch on first try",
			replies:     []reply{{patches: []event.Patch{rock}}},
			wantOutcome: OutcomePatched,
			wantCalls:   1,
			wantApplied: 1,
			wantCat:     "Rock, Indie, Metal",
		},
		{
			name:        "valid after one invalid reply",
			replies:     []reply{{err: invalid(1)}, {patches: []event.Patch{rock}}},
			wantOutcome: OutcomePatched,
			wantCalls:   2,
			wantApplied: 1,
			wantCat:     "Rock, Indie, Metal",
		},
		{
			name:        "valid empty list",
			replies:     []reply{{patches: []event.Patch{}}},
			wantOutcome: OutcomeNoPatches,
			wantCalls:   1,
			wantCat:     event.Unknown,
		},
		{
			name:        "only unmatched ids",
			replies:     []reply{{patches: []event.Patch{{ID: "nope", Category: event.Str("Klassik")}}}},
			wantOutcome: OutcomeNoPatches,
			wantCalls:   1,
			wantCat:     event.Unknown,
		},
		{
			name:        "always invalid",
			replies:     []reply{{err: invalid(1)}},
			wantOutcome: OutcomeExhausted,
			wantCalls:   3,
			wantCat:     event.Unknown,
		},
		{
			name:        "unreachable is not retried",
			replies:     []reply{{err: fmt.Errorf("%w: connection refused", ErrUnreachable)}},
			wantOutcome: OutcomeUnreachable,
			wantCalls:   1,
			wantCat:     event.Unknown,
		},
		{
			name:        "other provider error is not retried",
			replies:     []reply{{err: errors.New("boom")}},
			wantOutcome: OutcomeFailed,
			wantCalls:   1,
			wantCat:     event.Unknown,
		},
		{
			name:        "provider error after invalid",
			replies:     []reply{{err: invalid(1)}, {err: errors.New("encoding records: boom")}},
			wantOutcome: OutcomeFailed,
			wantCalls:   2,
			wantCat:     event.Unknown,
		},
		{
			name:        "unreachable after invalid",
			replies:     []reply{{err: invalid(1)}, {err: fmt.Errorf("%w: status 503", ErrUnreachable)}},
			wantOutcome: OutcomeUnreachable,
			wantCalls:   2,
			wantCat:     event.Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{events: storedEvents()}
			provider := &scriptedProvider{replies: tt.replies}
			a := New(store, provider, testAugmentConfig())

			result, err := a.Augment(context.Background(), day)
			if err != nil {
				t.Fatalf("Augment() error: %v", err)
			}

			if result.Outcome != tt.wantOutcome {
				t.Errorf("outcome = %s, want %s", result.Outcome, tt.wantOutcome)
			}
			if provider.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", provider.calls, tt.wantCalls)
			}
			if result.Applied != tt.wantApplied {
				t.Errorf("applied = %d, want %d", result.Applied, tt.wantApplied)
			}
			if len(result.Events) != 2 {
				t.Fatalf("expected 2 events, got %d", len(result.Events))
			}
			if got := event.Value(result.Events[0].Category); got != tt.wantCat {
				t.Errorf("category = %q, want %q", got, tt.wantCat)
			}
			if got := event.Value(result.Events[1].Category); got != "Klassik" {
				t.Errorf("untouched event lost its category: %q", got)
			}
			if len(store.upserts) != 1 {
				t.Errorf("expected one re-upsert, got %d", len(store.upserts))
			}
			if tt.wantOutcome.Degraded() && result.Err == nil {
				t.Error("degraded result should carry the provider error")
			}
		})
	}
}

func TestAugment_PayloadKeepsUnknownFields(t *testing.T) {
	store := &memStore{events: storedEvents()}
	provider := &scriptedProvider{replies: []reply{{patches: []event.Patch{}}}}

	if _, err := New(store, provider, testAugmentConfig()).Augment(context.Background(), day); err != nil {
		t.Fatalf("Augment() error: %v", err)
	}

	if len(provider.seen) != 1 || len(provider.seen[0]) != 2 {
		t.Fatalf("unexpected payloads: %v", provider.seen)
	}
	rec := provider.seen[0][0]
	if rec.ID == "" || rec.Date != "2026-02-20" || rec.Time != "18:45" {
		t.Errorf("identity fields missing from payload: %+v", rec)
	}
	if rec.Category != nil || rec.URL != nil {
		t.Errorf("unknown fields should be passed as nil: %+v", rec)
	}
}

func TestAugment_NoEvents(t *testing.T) {
	store := &memStore{}
	provider := &scriptedProvider{replies: []reply{{patches: []event.Patch{}}}}

	result, err := New(store, provider, testAugmentConfig()).Augment(context.Background(), day)
	if err != nil {
		t.Fatalf("Augment() error: %v", err)
	}
	if result.Outcome != OutcomeSkipped {
		t.Errorf("outcome = %s, want skipped", result.Outcome)
	}
	if provider.calls != 0 {
		t.Errorf("provider should not be called, got %d calls", provider.calls)
	}
	if len(store.upserts) != 0 {
		t.Error("nothing should be written")
	}
}

func TestAugment_StoreError(t *testing.T) {
	boom := errors.New("disk gone")
	store := &memStore{loadErr: boom}
	provider := &scriptedProvider{replies: []reply{{patches: []event.Patch{}}}}

	_, err := New(store, provider, testAugmentConfig()).Augment(context.Background(), day)
	if !errors.Is(err, boom) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestAugment_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &memStore{events: storedEvents()}
	provider := &scriptedProvider{replies: []reply{{err: invalid(1)}}}

	if _, err := New(store, provider, testAugmentConfig()).Augment(ctx, day); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_MaxRetriesDefault(t *testing.T) {
	cfg := testAugmentConfig()
	cfg.MaxRetries = 0
	if a := New(&memStore{}, None{}, cfg); a.maxRetries != DefaultMaxRetries {
		t.Errorf("maxRetries = %d, want %d", a.maxRetries, DefaultMaxRetries)
	}
}

func TestNewProviderFromConfig(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"openai", "openai", false},
		{"none", "none", false},
		{"", "none", false},
		{"gemini", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := testAugmentConfig()
			cfg.Provider = tt.provider
			p, err := NewProviderFromConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProviderFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}
