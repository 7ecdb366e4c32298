// internal/service/dedupe/merger.go
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dedupe-service/internal/domain/customer"
	"dedupe-service/internal/domain/dedupe"
	xerrors "dedupe-service/internal/pkg/errors"
	"dedupe-service/internal/pkg/lock"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MergeResult describes what a single merge changed.
type MergeResult struct {
	Primary     *customer.Record
	AbsorbedIDs []string // external ids newly added to the primary's merged_from
	Superseded  []int64  // secondaries moved to merged_into
	Skipped     []int64  // secondaries that were missing or already superseded
}

// Merger folds secondary records into a primary.
type Merger struct {
	store  customer.RecordStore
	locker lock.Locker
	logger *zap.Logger
	now    func() time.Time
}

func NewMerger(store customer.RecordStore, locker lock.Locker, logger *zap.Logger) *Merger {
	if locker == nil {
		locker = lock.NewLocalLocker(lock.Options{})
	}
	return &Merger{
		store:  store,
		locker: locker,
		logger: logger,
		now:    time.Now,
	}
}

// ValidateMergeRequest rejects malformed ids before anything is read or locked.
func ValidateMergeRequest(primaryID int64, recordIDs []int64) error {
	if primaryID <= 0 {
		return xerrors.Invalid("primary_id must be a positive integer")
	}
	for i, id := range recordIDs {
		if id <= 0 {
			return xerrors.Invalid("record_ids[%d] must be a positive integer", i)
		}
	}
	return nil
}

// secondaryIDs drops the primary and repeated ids, keeping request order.
func secondaryIDs(primaryID int64, recordIDs []int64) []int64 {
	seen := make(map[int64]struct{}, len(recordIDs))
	out := make([]int64, 0, len(recordIDs))
	for _, id := range recordIDs {
		if id == primaryID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Merge marks primaryID as merged, appends the external ids of every
// resolvable secondary to its merged_from and supersedes those secondaries.
// Unknown secondaries are skipped. A superseded primary is refused.
//
// Records are updated one at a time. When a secondary update fails the
// remaining secondaries are still attempted and the failures are returned
// together with the result.
func (m *Merger) Merge(ctx context.Context, primaryID int64, recordIDs []int64) (*MergeResult, error) {
	if err := ValidateMergeRequest(primaryID, recordIDs); err != nil {
		return nil, err
	}
	secondaries := secondaryIDs(primaryID, recordIDs)

	release, err := m.locker.Acquire(ctx, lock.RecordKeys(append([]int64{primaryID}, secondaries...)...)...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("failed to release merge locks", zap.Int64("primary_id", primaryID), zap.Error(err))
		}
	}()

	primary, err := m.store.FindByID(ctx, primaryID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("primary record %d: %w", primaryID, xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load primary record: %w", err)
	}

	result := &MergeResult{Primary: primary}

	resolved := make([]*customer.Record, 0, len(secondaries))
	for _, id := range secondaries {
		rec, err := m.store.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, xerrors.ErrNotFound) {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			return nil, fmt.Errorf("failed to load record %d: %w", id, err)
		}
		if rec.Status == customer.StatusMergedInto {
			m.logger.Info("secondary already superseded, skipping",
				zap.Int64("primary_id", primaryID),
				zap.Int64("record_id", id),
			)
			result.Skipped = append(result.Skipped, id)
			continue
		}
		resolved = append(resolved, rec)
	}

	absorbed := make([]string, 0, len(resolved))
	for _, rec := range resolved {
		absorbed = append(absorbed, rec.CustomerID)
	}

	if err := primary.MarkPrimary(); err != nil {
		return nil, err
	}
	result.AbsorbedIDs = primary.Absorb(absorbed...)
	primary.UpdatedAt = m.now()

	if err := m.store.Update(ctx, primary.ID, primary); err != nil {
		m.logger.Error("failed to update primary record", zap.Int64("primary_id", primaryID), zap.Error(err))
		return nil, fmt.Errorf("failed to update primary record: %w", err)
	}

	var errs error
	for _, rec := range resolved {
		if err := rec.MarkMergedInto(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		rec.UpdatedAt = m.now()
		if err := m.store.Update(ctx, rec.ID, rec); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record %d: %w", rec.ID, err))
			continue
		}
		result.Superseded = append(result.Superseded, rec.ID)
	}

	if errs != nil {
		m.logger.Error("merge partially applied",
			zap.Int64("primary_id", primaryID),
			zap.Int64s("superseded", result.Superseded),
			zap.Error(errs),
		)
		return result, fmt.Errorf("failed to supersede %d of %d records: %w",
			len(multierr.Errors(errs)), len(resolved), errs)
	}

	m.logger.Info("records merged",
		zap.Int64("primary_id", primaryID),
		zap.String("customer_id", primary.CustomerID),
		zap.Strings("absorbed", result.AbsorbedIDs),
		zap.Int64s("skipped", result.Skipped),
	)

	return result, nil
}

// MergeBatch runs each group on its own. A failing or panicking group is
// reported in its result and the next group still runs.
func (m *Merger) MergeBatch(ctx context.Context, groups []dedupe.BatchGroupRequest) *dedupe.BatchMergeResponse {
	resp := &dedupe.BatchMergeResponse{
		TotalProcessed: len(groups),
		Results:        make([]dedupe.GroupResult, 0, len(groups)),
	}

	for _, g := range groups {
		res := m.mergeGroup(ctx, g)
		if res.Success {
			resp.SuccessCount++
		} else {
			resp.FailureCount++
		}
		resp.Results = append(resp.Results, res)
	}

	m.logger.Info("batch merge complete",
		zap.Int("groups", resp.TotalProcessed),
		zap.Int("succeeded", resp.SuccessCount),
		zap.Int("failed", resp.FailureCount),
	)

	return resp
}

func (m *Merger) mergeGroup(ctx context.Context, g dedupe.BatchGroupRequest) (res dedupe.GroupResult) {
	res.GroupID = g.GroupID

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic while merging group",
				zap.String("group_id", g.GroupID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			res = dedupe.GroupResult{
				GroupID: g.GroupID,
				Success: false,
				Message: fmt.Sprintf("unexpected error: %v", r),
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Message = err.Error()
		return res
	}

	if _, err := m.Merge(ctx, g.PrimaryID, g.RecordIDs); err != nil {
		m.logger.Warn("group merge failed", zap.String("group_id", g.GroupID), zap.Error(err))
		if errors.Is(err, xerrors.ErrNotFound) {
			res.Message = "primary record not found"
		} else {
			res.Message = err.Error()
		}
		return res
	}

	res.Success = true
	res.PrimaryID = g.PrimaryID
	return res
}
