// Package pipeline answers "what's on in Hamburg on date X".
//
// A request runs through a fixed state machine:
//
//	Start -> Extract -> Augment -> Filter -> Present -> End
//	Start ----------->  Augment -> ...
//
// Route decides at Start whether the date must be crawled first. Augmentation
// always runs, on fresh and stored data alike. Router, fetch and store
// failures abort the request; augmentation failures only reduce enrichment.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/hh-events/internal/augment"
	"github.com/pfrederiksen/hh-events/internal/config"
	"github.com/pfrederiksen/hh-events/internal/event"
	"github.com/pfrederiksen/hh-events/internal/filter"
	"github.com/pfrederiksen/hh-events/internal/logger"
	"github.com/pfrederiksen/hh-events/internal/metrics"
	"github.com/pfrederiksen/hh-events/internal/present"
	"github.com/pfrederiksen/hh-events/internal/scraper"
	"github.com/pfrederiksen/hh-events/internal/validation"
)

// ErrInvalidRequest is returned for requests that fail validation
var ErrInvalidRequest = errors.New("invalid request")

// StateName identifies a node of the state machine
type StateName int

const (
	StateStart StateName = iota
	StateExtract
	StateAugment
	StateFilter
	StatePresent
	StateEnd
)

func (s StateName) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateExtract:
		return "extract"
	case StateAugment:
		return "augment"
	case StateFilter:
		return "filter"
	case StatePresent:
		return "present"
	case StateEnd:
		return "end"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Request is one user query
type Request struct {
	Date     string         `json:"date" validate:"required,datetime=2006-01-02"`
	Category string         `json:"category,omitempty"`
	Venues   []string       `json:"venues,omitempty"`
	After    string         `json:"after,omitempty" validate:"omitempty,datetime=15:04"`
	Format   present.Format `json:"format,omitempty"`
	Verbose  bool           `json:"verbose,omitempty"`
	// Refresh forces extraction even when the date is already stored
	Refresh bool `json:"refresh,omitempty"`
}

// Output is the rendered answer
type Output struct {
	Text string `json:"text"`
}

// State is the per-request working state. It is not persisted.
type State struct {
	Date       time.Time
	Filter     *filter.Filter
	Refresh    bool
	Branch     Branch
	Candidates []event.Event
	Events     []event.Event
	Augment    *augment.Result
	Output     Output

	// Attempts is the audit log of augmentation calls
	Attempts []augment.Attempt
	// Path lists the states visited, in order
	Path []StateName
}

// Store is everything the pipeline needs from storage
type Store interface {
	Availability
	augment.Store
	EnsureSchema(ctx context.Context) error
}

// Pipeline wires the stages together
type Pipeline struct {
	store     Store
	source    scraper.Source
	provider  augment.Provider
	augmenter *augment.Augmenter
}

// New creates a Pipeline
func New(cfg *config.Config, store Store, source scraper.Source, provider augment.Provider) *Pipeline {
	return &Pipeline{
		store:     store,
		source:    source,
		provider:  provider,
		augmenter: augment.New(store, provider, cfg.Augment),
	}
}

// Answer runs req and returns only the rendered output
func (p *Pipeline) Answer(ctx context.Context, req Request) (Output, error) {
	st, err := p.Run(ctx, req)
	if err != nil {
		return Output{}, err
	}
	return st.Output, nil
}

// Run drives req through the state machine and returns the final state.
func (p *Pipeline) Run(ctx context.Context, req Request) (*State, error) {
	st, presenter, err := newState(req, p.provider)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("none", "invalid").Inc()
		return nil, err
	}

	fields := logger.Fields{"date": req.Date}
	current := StateStart

	for current != StateEnd {
		st.Path = append(st.Path, current)

		next, err := p.step(ctx, current, st, presenter)
		if err != nil {
			metrics.PipelineRuns.WithLabelValues(st.Branch.String(), "error").Inc()
			fields["state"] = current.String()
			logger.Error("Pipeline aborted", fields, err)
			return st, fmt.Errorf("%s: %w", current, err)
		}
		current = next
	}
	st.Path = append(st.Path, StateEnd)

	metrics.PipelineRuns.WithLabelValues(st.Branch.String(), "ok").Inc()
	fields["branch"] = st.Branch.String()
	fields["events"] = len(st.Events)
	logger.Info("Pipeline finished", fields)
	return st, nil
}

// step executes one state and returns the next one
func (p *Pipeline) step(ctx context.Context, current StateName, st *State, presenter *present.Presenter) (StateName, error) {
	switch current {
	case StateStart:
		if st.Refresh {
			st.Branch = NeedsExtraction
			return StateExtract, nil
		}
		branch, err := Route(ctx, p.store, st.Date)
		if err != nil {
			return StateEnd, err
		}
		st.Branch = branch
		logger.Debug("Routed request", logger.Fields{"date": st.Date.Format(event.DateLayout), "branch": branch.String()})
		if branch == NeedsExtraction {
			return StateExtract, nil
		}
		return StateAugment, nil

	case StateExtract:
		if err := p.extract(ctx, st); err != nil {
			return StateEnd, err
		}
		return StateAugment, nil

	case StateAugment:
		result, err := p.augmenter.Augment(ctx, st.Date)
		if err != nil {
			return StateEnd, err
		}
		st.Augment = result
		st.Attempts = append(st.Attempts, result.Attempts...)
		st.Events = result.Events
		return StateFilter, nil

	case StateFilter:
		st.Events = st.Filter.Apply(st.Events)
		return StatePresent, nil

	case StatePresent:
		text, err := presenter.Render(ctx, st.Date, st.Events)
		if err != nil {
			return StateEnd, err
		}
		st.Output = Output{Text: text}
		return StateEnd, nil

	default:
		return StateEnd, fmt.Errorf("unexpected state %s", current)
	}
}

// extract fetches the listing page, parses it and stores the candidates
func (p *Pipeline) extract(ctx context.Context, st *State) error {
	if err := p.store.EnsureSchema(ctx); err != nil {
		return err
	}

	page, err := p.source.Fetch(ctx, st.Date)
	if err != nil {
		return err
	}

	seq, err := scraper.Extract(bytes.NewReader(page.Body), page.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", scraper.ErrFetchFailed, err)
	}
	for evt := range seq {
		st.Candidates = append(st.Candidates, evt)
	}

	logger.Info("Extracted events", logger.Fields{
		"date":   st.Date.Format(event.DateLayout),
		"events": len(st.Candidates),
	})
	return p.store.Upsert(ctx, st.Candidates)
}

func newState(req Request, summarizer present.Summarizer) (*State, *present.Presenter, error) {
	if err := validation.ValidateStruct(&req); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	date, err := event.ParseISODate(req.Date)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	f := filter.ForCategory(strings.TrimSpace(req.Category))
	f.Venues = append(f.Venues, req.Venues...)
	if f.After, err = filter.ParseAfter(req.After); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	format, err := present.ParseFormat(string(req.Format))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	st := &State{
		Date:    date,
		Filter:  f,
		Refresh: req.Refresh,
	}
	return st, present.New(format, summarizer, req.Verbose), nil
}
