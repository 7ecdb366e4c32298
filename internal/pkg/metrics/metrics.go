// internal/pkg/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"time"

	xerrors "dedupe-service/internal/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MergeOutcomeSuccess    = "success"
	MergeOutcomeNotFound   = "not_found"
	MergeOutcomeConflict   = "conflict"
	MergeOutcomeInvalid    = "invalid"
	MergeOutcomeTransition = "invalid_transition"
	MergeOutcomeTimeout    = "deadline_exceeded"
	MergeOutcomeError      = "error"
)

// DedupeMetrics records scan and merge activity. A nil *DedupeMetrics is a
// valid no-op recorder.
type DedupeMetrics struct {
	scans           prometheus.Counter
	scanDuration    prometheus.Histogram
	groupsFound     *prometheus.CounterVec
	merges          *prometheus.CounterVec
	recordsAbsorbed prometheus.Counter
	batchGroups     *prometheus.CounterVec
}

// New registers the dedupe collectors on registerer, or on the default
// registerer when nil.
func New(registerer prometheus.Registerer) *DedupeMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	scans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dedupe_scans_total",
		Help: "Duplicate scans run over the record set.",
	})
	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dedupe_scan_duration_seconds",
		Help:    "Time spent matching records in one scan.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	groupsFound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dedupe_groups_found_total",
		Help: "Duplicate groups reported by match reason.",
	}, []string{"reason"})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dedupe_merges_total",
		Help: "Merge attempts by low-cardinality outcome.",
	}, []string{"outcome"})
	recordsAbsorbed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dedupe_records_absorbed_total",
		Help: "External ids appended to a primary's merged_from.",
	})
	batchGroups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dedupe_batch_groups_total",
		Help: "Batch merge groups by result.",
	}, []string{"result"})

	registerer.MustRegister(scans, scanDuration, groupsFound, merges, recordsAbsorbed, batchGroups)

	return &DedupeMetrics{
		scans:           scans,
		scanDuration:    scanDuration,
		groupsFound:     groupsFound,
		merges:          merges,
		recordsAbsorbed: recordsAbsorbed,
		batchGroups:     batchGroups,
	}
}

// ObserveScan records one scan. groupsByReason maps a match reason to the
// number of groups it produced.
func (m *DedupeMetrics) ObserveScan(d time.Duration, groupsByReason map[string]int) {
	if m == nil {
		return
	}
	m.scans.Inc()
	m.scanDuration.Observe(d.Seconds())
	for reason, n := range groupsByReason {
		m.groupsFound.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *DedupeMetrics) ObserveMerge(err error, absorbed int) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(ClassifyMergeOutcome(err)).Inc()
	if absorbed > 0 {
		m.recordsAbsorbed.Add(float64(absorbed))
	}
}

func (m *DedupeMetrics) ObserveBatch(succeeded, failed int) {
	if m == nil {
		return
	}
	m.batchGroups.WithLabelValues("success").Add(float64(succeeded))
	m.batchGroups.WithLabelValues("failure").Add(float64(failed))
}

// ClassifyMergeOutcome maps a merge error to a metric label.
func ClassifyMergeOutcome(err error) string {
	switch {
	case err == nil:
		return MergeOutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return MergeOutcomeTimeout
	case errors.Is(err, xerrors.ErrNotFound):
		return MergeOutcomeNotFound
	case errors.Is(err, xerrors.ErrConflict):
		return MergeOutcomeConflict
	case errors.Is(err, xerrors.ErrInvalidInput):
		return MergeOutcomeInvalid
	case errors.Is(err, xerrors.ErrInvalidTransition):
		return MergeOutcomeTransition
	default:
		return MergeOutcomeError
	}
}
