package augment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pfrederiksen/hh-events/internal/config"
	"github.com/pfrederiksen/hh-events/internal/event"
	"github.com/pfrederiksen/hh-events/internal/logger"
	"github.com/pfrederiksen/hh-events/internal/metrics"
)

// DefaultMaxRetries is the total number of provider calls per round
const DefaultMaxRetries = 3

// Outcome classifies one augmentation round
type Outcome string

const (
	// OutcomeSkipped: no stored events for the date
	OutcomeSkipped Outcome = "skipped"
	// OutcomeNoPatches: the provider answered validly with nothing to change
	OutcomeNoPatches Outcome = "no_patches"
	// OutcomePatched: at least one patch matched an event
	OutcomePatched Outcome = "patched"
	// OutcomeExhausted: every attempt returned an invalid reply
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeUnreachable: the provider could not be called
	OutcomeUnreachable Outcome = "unreachable"
	// OutcomeFailed: the provider failed for a reason other than an invalid reply
	OutcomeFailed Outcome = "failed"
)

// Degraded reports whether patches were wanted but could not be obtained.
func (o Outcome) Degraded() bool {
	return o == OutcomeExhausted || o == OutcomeUnreachable || o == OutcomeFailed
}

// Attempt records one provider call
type Attempt struct {
	Number   int
	Provider string
	Result   string // "valid", "invalid", "unreachable" or "failed"
	Duration time.Duration
	Err      error
}

// Result is the outcome of Augment
type Result struct {
	Outcome  Outcome
	Events   []event.Event
	Patches  []event.Patch
	Applied  int
	Attempts []Attempt
	// Err is the last provider error of a degraded round
	Err error
}

// Store is the subset of storage used by the Augmenter
type Store interface {
	LoadByDate(ctx context.Context, date time.Time) ([]event.Event, error)
	Upsert(ctx context.Context, events []event.Event) error
}

// Augmenter runs augmentation rounds against a store
type Augmenter struct {
	store         Store
	provider      Provider
	maxRetries    int
	retryInterval time.Duration
	callTimeout   time.Duration
}

// New creates an Augmenter using the retry settings in cfg
func New(store Store, provider Provider, cfg config.AugmentConfig) *Augmenter {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return &Augmenter{
		store:         store,
		provider:      provider,
		maxRetries:    maxRetries,
		retryInterval: cfg.RetryInterval,
		callTimeout:   cfg.Timeout,
	}
}

// Augment loads the events for date, applies provider patches and writes the
// merged batch back. Only store failures are returned as errors; provider
// failures degrade the Result.
func (a *Augmenter) Augment(ctx context.Context, date time.Time) (*Result, error) {
	events, err := a.store.LoadByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	fields := logger.Fields{
		"date":     date.Format(event.DateLayout),
		"provider": a.provider.Name(),
		"events":   len(events),
	}

	if len(events) == 0 {
		logger.Debug("No events to augment", fields)
		metrics.AugmentRuns.WithLabelValues(string(OutcomeSkipped)).Inc()
		return &Result{Outcome: OutcomeSkipped, Events: events}, nil
	}

	patches, attempts, perr := a.RequestPatches(ctx, event.Records(events))
	result := &Result{Attempts: attempts, Err: perr}
	fields["attempts"] = len(attempts)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	switch {
	case perr == nil:
		result.Patches = patches
		result.Events, result.Applied = event.ApplyPatches(events, patches)
		if result.Applied > 0 {
			result.Outcome = OutcomePatched
		} else {
			result.Outcome = OutcomeNoPatches
		}
		fields["patches"] = len(patches)
		fields["applied"] = result.Applied
		logger.Info("Augmentation applied", fields)
	case errors.Is(perr, ErrUnreachable):
		result.Outcome = OutcomeUnreachable
		result.Events = events
		logger.WarnErr("Augmentation service unreachable, continuing without enrichment", fields, perr)
	case errors.Is(perr, ErrInvalidPatches):
		result.Outcome = OutcomeExhausted
		result.Patches = []event.Patch{}
		result.Events = events
		logger.WarnErr("Augmentation retries exhausted, continuing without enrichment", fields, perr)
	default:
		result.Outcome = OutcomeFailed
		result.Events = events
		logger.WarnErr("Augmentation service failed, continuing without enrichment", fields, perr)
	}
	metrics.AugmentRuns.WithLabelValues(string(result.Outcome)).Inc()

	if err := a.store.Upsert(ctx, result.Events); err != nil {
		return nil, fmt.Errorf("storing augmented events: %w", err)
	}
	return result, nil
}

// RequestPatches calls the provider until it returns a valid patch list, at
// most maxRetries times. Only replies failing ErrInvalidPatches are retried;
// any other provider error ends the loop at once. The returned error is the
// last one seen.
func (a *Augmenter) RequestPatches(ctx context.Context, records []event.Record) ([]event.Patch, []Attempt, error) {
	var (
		patches  []event.Patch
		attempts []Attempt
	)

	operation := func() error {
		callCtx := ctx
		if a.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
			defer cancel()
		}

		start := time.Now()
		got, err := a.provider.Patches(callCtx, records)
		att := Attempt{
			Number:   len(attempts) + 1,
			Provider: a.provider.Name(),
			Duration: time.Since(start),
			Err:      err,
		}

		switch {
		case err == nil:
			att.Result = "valid"
		case errors.Is(err, ErrUnreachable):
			att.Result = "unreachable"
		case errors.Is(err, ErrInvalidPatches):
			att.Result = "invalid"
		default:
			att.Result = "failed"
		}
		attempts = append(attempts, att)
		metrics.AugmentAttempts.WithLabelValues(att.Result).Inc()

		switch att.Result {
		case "valid":
			patches = got
			return nil
		case "invalid":
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			logger.Debug("Invalid augmentation reply", logger.Fields{
				"attempt": att.Number,
				"error":   err.Error(),
			})
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.retryInterval), uint64(a.maxRetries-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, attempts, err
	}
	if patches == nil {
		patches = []event.Patch{}
	}
	return patches, attempts, nil
}
