package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pfrederiksen/hh-events/internal/config"
	"github.com/pfrederiksen/hh-events/internal/event"
	"github.com/pfrederiksen/hh-events/internal/logger"
	"github.com/pfrederiksen/hh-events/internal/metrics"
)

// MaxPageSize caps how much of a listing page is read.
const MaxPageSize = 10 << 20

// ErrFetchFailed is returned when the listing page cannot be retrieved:
// transport errors, timeouts and non-2xx responses.
var ErrFetchFailed = errors.New("fetch failed")

// Page is one fetched listing page.
type Page struct {
	URL  string
	Body []byte
}

// Source returns the raw listing markup for a date.
type Source interface {
	Fetch(ctx context.Context, date time.Time) (*Page, error)
}

// Scraper fetches listing pages over HTTP
type Scraper struct {
	client       *http.Client
	listingURL   string
	userAgent    string
	contactEmail string
}

// New creates a Scraper for the configured calendar
func New(cfg config.SourceConfig) *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		listingURL:   cfg.ListingURL(),
		userAgent:    cfg.UserAgent,
		contactEmail: cfg.ContactEmail,
	}
}

// PageURL builds the filtered listing URL for date: evening concerts and
// music in all districts within 15 km.
func (s *Scraper) PageURL(date time.Time) (string, error) {
	u, err := url.Parse(s.listingURL)
	if err != nil {
		return "", fmt.Errorf("parsing listing URL: %w", err)
	}

	day := event.FormatDayFirst(date)
	q := url.Values{}
	q.Set("filter[date]", day+","+day)
	q.Set("filter[searchword]", "")
	q.Add("filter[daytime][]", "evening")
	q.Add("filter[vadbcategorygroup][]", "19")
	q.Set("filter[district]", "hh_all")
	q.Set("filter[distance]", "15")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Fetch downloads the listing page for date
func (s *Scraper) Fetch(ctx context.Context, date time.Time) (*Page, error) {
	pageURL, err := s.PageURL(date)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	if s.contactEmail != "" {
		req.Header.Set("From", s.contactEmail)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: fetching page: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPageSize))
	if err != nil {
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: reading body: %w", ErrFetchFailed, err)
	}

	metrics.FetchTotal.WithLabelValues("ok").Inc()
	logger.Debug("Fetched listing page", logger.Fields{
		"url":      pageURL,
		"bytes":    len(body),
		"duration": time.Since(start).String(),
	})

	return &Page{URL: pageURL, Body: body}, nil
}
