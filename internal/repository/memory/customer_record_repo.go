// internal/repository/memory/customer_record_repo.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dedupe-service/internal/domain/customer"
	xerrors "dedupe-service/internal/pkg/errors"
)

// CustomerRecordRepository keeps records in process memory. Records are
// copied on the way in and out so callers never share state with the store.
type CustomerRecordRepository struct {
	mu      sync.RWMutex
	records map[int64]customer.Record
	nextID  int64
	now     func() time.Time
}

func NewCustomerRecordRepository() *CustomerRecordRepository {
	return &CustomerRecordRepository{
		records: make(map[int64]customer.Record),
		nextID:  1,
		now:     time.Now,
	}
}

// BulkCreate assigns ids and timestamps and stores all records, or none if
// any customer id is already taken.
func (r *CustomerRecordRepository) BulkCreate(ctx context.Context, records []customer.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := make(map[string]struct{}, len(r.records)+len(records))
	for _, rec := range r.records {
		taken[rec.CustomerID] = struct{}{}
	}
	for _, rec := range records {
		if _, ok := taken[rec.CustomerID]; ok {
			return fmt.Errorf("customer id %s: %w", rec.CustomerID, xerrors.ErrDuplicateEntry)
		}
		taken[rec.CustomerID] = struct{}{}
	}

	now := r.now()
	for i := range records {
		rec := &records[i]
		rec.ID = r.nextID
		r.nextID++
		if rec.Status == "" {
			rec.Status = customer.StatusClean
		}
		if rec.MergedFrom == nil {
			rec.MergedFrom = []string{}
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		r.records[rec.ID] = rec.Clone()
	}
	return nil
}

func (r *CustomerRecordRepository) FindAll(ctx context.Context) ([]customer.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(customer.Record) bool { return true }), nil
}

func (r *CustomerRecordRepository) FindByID(ctx context.Context, id int64) (*customer.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (r *CustomerRecordRepository) ExistsByCustomerID(ctx context.Context, customerID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.CustomerID == customerID {
			return true, nil
		}
	}
	return false, nil
}

// Update replaces the mutable fields of a record. ID, CustomerID and
// CreatedAt are kept from the stored copy.
func (r *CustomerRecordRepository) Update(ctx context.Context, id int64, record *customer.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.records[id]
	if !ok {
		return xerrors.ErrNotFound
	}

	next := record.Clone()
	next.ID = existing.ID
	next.CustomerID = existing.CustomerID
	next.CreatedAt = existing.CreatedAt
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = r.now()
	}
	r.records[id] = next
	return nil
}

func (r *CustomerRecordRepository) List(ctx context.Context, filters *customer.ListFilters) ([]customer.Record, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filters.Search))
	matched := r.sorted(func(rec customer.Record) bool {
		if filters.Status != "" && string(rec.Status) != filters.Status {
			return false
		}
		if filters.ExcludeMerged && rec.Status == customer.StatusMergedInto {
			return false
		}
		if search == "" {
			return true
		}
		return strings.Contains(strings.ToLower(rec.FullName()), search) ||
			strings.Contains(strings.ToLower(rec.CustomerID), search) ||
			strings.Contains(rec.Phone, search)
	})

	total := int64(len(matched))
	if filters.PageSize <= 0 {
		return matched, total, nil
	}

	start := (filters.Page - 1) * filters.PageSize
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		return []customer.Record{}, total, nil
	}
	end := start + filters.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *CustomerRecordRepository) GetStats(ctx context.Context) (*customer.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &customer.Stats{TotalRecords: int64(len(r.records))}
	for _, rec := range r.records {
		switch rec.Status {
		case customer.StatusClean:
			stats.CleanRecords++
		case customer.StatusMerged:
			stats.MergedRecords++
		case customer.StatusMergedInto:
			stats.MergedInto++
		}
	}
	stats.DuplicatesSeen = stats.MergedInto
	return stats, nil
}

// ClearAll removes every record. Ids are not reused afterwards.
func (r *CustomerRecordRepository) ClearAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.records))
	r.records = make(map[int64]customer.Record)
	return n, nil
}

// sorted returns clones of the records accepted by keep, in id order.
// Callers hold the lock.
func (r *CustomerRecordRepository) sorted(keep func(customer.Record) bool) []customer.Record {
	out := make([]customer.Record, 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ customer.Repository = (*CustomerRecordRepository)(nil)
