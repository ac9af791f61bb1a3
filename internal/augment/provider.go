package augment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/hh-events/internal/config"
	"github.com/pfrederiksen/hh-events/internal/event"
)

var (
	// ErrInvalidPatches means the provider answered, but the answer did not
	// decode to a valid patch list.
	ErrInvalidPatches = errors.New("invalid patches")

	// ErrUnreachable means the provider could not be called: transport
	// errors, non-2xx responses or an open circuit breaker.
	ErrUnreachable = errors.New("augmentation service unreachable")

	// ErrNoSummarizer is returned by providers that cannot write summaries.
	ErrNoSummarizer = errors.New("provider has no summarizer")
)

// Provider is an augmentation backend
type Provider interface {
	// Name identifies the backend in logs
	Name() string

	// Patches asks for category/description patches for records.
	Patches(ctx context.Context, records []event.Record) ([]event.Patch, error)

	// Summarize writes a natural-language presentation of records for date.
	// An empty batch must produce an apology without offers of further help.
	Summarize(ctx context.Context, date time.Time, records []event.Record) (string, error)
}

// NewProviderFromConfig builds the provider named by cfg.Provider.
func NewProviderFromConfig(cfg config.AugmentConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg), nil
	case "none", "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unsupported augmentation provider: %q", cfg.Provider)
	}
}

// None never patches and cannot summarize
type None struct{}

// Name returns "none"
func (None) Name() string { return "none" }

// Patches returns an empty patch list
func (None) Patches(context.Context, []event.Record) ([]event.Patch, error) {
	return []event.Patch{}, nil
}

// Summarize always fails with ErrNoSummarizer
func (None) Summarize(context.Context, time.Time, []event.Record) (string, error) {
	return "", ErrNoSummarizer
}
