// internal/service/dedupe/service.go
package dedupe

import (
	"context"
	"fmt"
	"time"

	"dedupe-service/internal/domain/customer"
	"dedupe-service/internal/domain/dedupe"
	"dedupe-service/internal/pkg/lock"
	"dedupe-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Notifier receives scan and merge results for live operator views.
type Notifier interface {
	NotifyDuplicatesFound(resp *dedupe.FindDuplicatesResponse)
	NotifyMergeCompleted(resp *dedupe.MergeResponse)
	NotifyBatchCompleted(resp *dedupe.BatchMergeResponse)
}

type Options struct {
	ClaimMode dedupe.ClaimMode
	// ExcludeMerged drops merged_into records before matching.
	ExcludeMerged bool
	Metrics       *metrics.DedupeMetrics
	Notifier      Notifier
}

type DedupeService struct {
	store         customer.RecordStore
	matcher       *Matcher
	merger        *Merger
	metrics       *metrics.DedupeMetrics
	notifier      Notifier
	excludeMerged bool
	logger        *zap.Logger
}

func NewDedupeService(store customer.RecordStore, locker lock.Locker, logger *zap.Logger, opts Options) *DedupeService {
	return &DedupeService{
		store:         store,
		matcher:       NewMatcher(WithClaimMode(opts.ClaimMode)),
		merger:        NewMerger(store, locker, logger),
		metrics:       opts.Metrics,
		notifier:      opts.Notifier,
		excludeMerged: opts.ExcludeMerged,
		logger:        logger,
	}
}

// SetNotifier attaches a notifier after construction. The websocket hub
// needs the service for its scan handler, so it is wired in afterwards.
func (s *DedupeService) SetNotifier(n Notifier) {
	s.notifier = n
}

// FindDuplicates scans the full record set.
func (s *DedupeService) FindDuplicates(ctx context.Context) (*dedupe.FindDuplicatesResponse, error) {
	records, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	if s.excludeMerged {
		records = ExcludeSuperseded(records)
	}

	start := time.Now()
	groups := s.matcher.FindDuplicates(records)
	elapsed := time.Since(start)

	byReason := make(map[string]int)
	for _, g := range groups {
		byReason[string(g.MatchReason)]++
	}
	s.metrics.ObserveScan(elapsed, byReason)

	s.logger.Info("duplicate scan complete",
		zap.Int("records", len(records)),
		zap.Int("groups", len(groups)),
		zap.Duration("elapsed", elapsed),
	)

	resp := &dedupe.FindDuplicatesResponse{
		DuplicateGroups: groups,
		Total:           len(groups),
	}
	if s.notifier != nil {
		s.notifier.NotifyDuplicatesFound(resp)
	}
	return resp, nil
}

// Merge applies one merge. On partial failure both the response and the
// error are returned.
func (s *DedupeService) Merge(ctx context.Context, req *dedupe.MergeRequest) (*dedupe.MergeResponse, error) {
	res, err := s.merger.Merge(ctx, req.PrimaryID, req.RecordIDs)

	absorbed := 0
	if res != nil {
		absorbed = len(res.AbsorbedIDs)
	}
	s.metrics.ObserveMerge(err, absorbed)

	if res == nil {
		return nil, err
	}

	resp := &dedupe.MergeResponse{
		PrimaryRecord: res.Primary,
		AbsorbedIDs:   res.AbsorbedIDs,
	}
	if resp.AbsorbedIDs == nil {
		resp.AbsorbedIDs = []string{}
	}
	if err == nil && s.notifier != nil {
		s.notifier.NotifyMergeCompleted(resp)
	}
	return resp, err
}

// MergeBatch applies each group independently.
func (s *DedupeService) MergeBatch(ctx context.Context, req *dedupe.BatchMergeRequest) (*dedupe.BatchMergeResponse, error) {
	for i, g := range req.Groups {
		if err := ValidateMergeRequest(g.PrimaryID, g.RecordIDs); err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
	}

	resp := s.merger.MergeBatch(ctx, req.Groups)
	s.metrics.ObserveBatch(resp.SuccessCount, resp.FailureCount)

	if s.notifier != nil {
		s.notifier.NotifyBatchCompleted(resp)
	}
	return resp, nil
}
