// Package metrics exposes Prometheus instrumentation for the event pipeline.
//
// Counters track fetches, extraction results, store writes, augmentation
// attempts and pipeline runs. Histograms track store query latency. The CLI
// can print a snapshot of every hh_events_* series after a run.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "hh_events"

var (
	// Content source
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Listing page fetches by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	// Extractor
	ContainersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_containers_total",
			Help:      "Event containers seen by the extractor, by result",
		},
		[]string{"result"}, // "extracted", "skipped"
	)

	// Store
	UpsertedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_upserted_rows_total",
			Help:      "Rows written by upsert (insert or merge)",
		},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_seconds",
			Help:      "Duration of DuckDB store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store operations that failed",
		},
		[]string{"operation"},
	)

	// Augmenter
	AugmentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "augment_attempts_total",
			Help:      "Calls to the augmentation provider by result",
		},
		[]string{"result"}, // "valid", "invalid", "unreachable", "failed"
	)

	AugmentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "augment_runs_total",
			Help:      "Augmentation rounds by outcome",
		},
		[]string{"outcome"},
	)

	// Pipeline
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline requests by branch and result",
		},
		[]string{"branch", "result"},
	)
)

// ObserveStore records the duration of a store operation started at start.
func ObserveStore(operation string, start time.Time) {
	StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// WriteSnapshot gathers the default registry and writes every hh_events
// series as "name{labels} value", sorted by name.
func WriteSnapshot(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			lines = append(lines, fmt.Sprintf("%s%s %s", mf.GetName(), formatLabels(m.GetLabel()), formatValue(mf.GetType(), m)))
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func formatValue(t dto.MetricType, m *dto.Metric) string {
	switch t {
	case dto.MetricType_COUNTER:
		return fmt.Sprintf("%g", m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		return fmt.Sprintf("%g", m.GetGauge().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%gs", h.GetSampleCount(), h.GetSampleSum())
	default:
		return "?"
	}
}
