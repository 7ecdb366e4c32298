package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	xerrors "dedupe-service/internal/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClassifyMergeOutcome(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", err: nil, want: MergeOutcomeSuccess},
		{name: "deadline", err: context.DeadlineExceeded, want: MergeOutcomeTimeout},
		{name: "not_found", err: fmt.Errorf("primary record 9: %w", xerrors.ErrNotFound), want: MergeOutcomeNotFound},
		{name: "conflict", err: xerrors.ErrConflict, want: MergeOutcomeConflict},
		{name: "invalid", err: xerrors.Invalid("primary_id must be a positive integer"), want: MergeOutcomeInvalid},
		{name: "transition", err: xerrors.ErrInvalidTransition, want: MergeOutcomeTransition},
		{name: "unknown", err: errors.New("boom"), want: MergeOutcomeError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyMergeOutcome(tc.err))
		})
	}
}

func TestObserveScanAndMerge(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveScan(20*time.Millisecond, map[string]int{"phone_exact": 2, "name_fuzzy": 1})
	m.ObserveMerge(nil, 3)
	m.ObserveMerge(xerrors.ErrNotFound, 0)
	m.ObserveBatch(1, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.groupsFound.WithLabelValues("phone_exact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.groupsFound.WithLabelValues("name_fuzzy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.merges.WithLabelValues(MergeOutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.merges.WithLabelValues(MergeOutcomeNotFound)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.recordsAbsorbed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchGroups.WithLabelValues("failure")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var m *DedupeMetrics
	assert.NotPanics(t, func() {
		m.ObserveScan(time.Second, map[string]int{"name_exact": 1})
		m.ObserveMerge(nil, 2)
		m.ObserveBatch(1, 0)
	})
}
