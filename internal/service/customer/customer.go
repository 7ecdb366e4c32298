// internal/service/customer/customer.go
package customer

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"dedupe-service/internal/domain/customer"
	xerrors "dedupe-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	maxReferenceAttempts = 5
)

type CustomerService struct {
	repo   customer.Repository
	logger *zap.Logger

	// newReference is swapped in tests.
	newReference func() string
}

func NewCustomerService(repo customer.Repository, logger *zap.Logger) *CustomerService {
	return &CustomerService{
		repo:         repo,
		logger:       logger,
		newReference: randomCustomerID,
	}
}

// BulkCreate stores already-structured records as clean records with fresh
// CU-NNNNN ids.
func (s *CustomerService) BulkCreate(ctx context.Context, req *customer.BulkCreateRequest) (*customer.BulkCreateResponse, error) {
	if len(req.Records) == 0 {
		return nil, xerrors.Invalid("records must not be empty")
	}

	assigned := make(map[string]struct{}, len(req.Records))
	records := make([]customer.Record, 0, len(req.Records))
	for _, r := range req.Records {
		ref, err := s.generateCustomerID(ctx, assigned)
		if err != nil {
			return nil, err
		}
		records = append(records, customer.Record{
			CustomerID: ref,
			FirstName:  strings.TrimSpace(r.FirstName),
			LastName:   strings.TrimSpace(r.LastName),
			Phone:      strings.TrimSpace(r.Phone),
			Address:    strings.TrimSpace(r.Address),
			Zone:       strings.TrimSpace(r.Zone),
			Status:     customer.StatusClean,
			MergedFrom: []string{},
		})
	}

	if err := s.repo.BulkCreate(ctx, records); err != nil {
		s.logger.Error("bulk create failed", zap.Int("records", len(records)), zap.Error(err))
		return nil, fmt.Errorf("failed to store records: %w", err)
	}

	s.logger.Info("records ingested", zap.Int("records", len(records)))
	return &customer.BulkCreateResponse{
		RecordCount: len(records),
		Records:     records,
	}, nil
}

// Get returns one record by its internal id.
func (s *CustomerService) Get(ctx context.Context, id int64) (*customer.Record, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", id, err)
	}
	return rec, nil
}

func (s *CustomerService) List(ctx context.Context, filters *customer.ListFilters) (*customer.ListResponse, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = defaultPageSize
	}
	if filters.PageSize > maxPageSize {
		filters.PageSize = maxPageSize
	}

	records, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &customer.ListResponse{
		Records:    records,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

// Search matches name, phone or customer id, first page only.
func (s *CustomerService) Search(ctx context.Context, query string) ([]customer.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, xerrors.Invalid("search query is required")
	}

	records, _, err := s.repo.List(ctx, &customer.ListFilters{
		Search:   query,
		Page:     1,
		PageSize: maxPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	return records, nil
}

func (s *CustomerService) Stats(ctx context.Context) (*customer.Stats, error) {
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// ClearAll deletes every record and returns how many were removed.
func (s *CustomerService) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.repo.ClearAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear records: %w", err)
	}
	s.logger.Warn("all customer records cleared", zap.Int64("deleted", n))
	return n, nil
}

// generateCustomerID picks an id not present in the store or in assigned.
func (s *CustomerService) generateCustomerID(ctx context.Context, assigned map[string]struct{}) (string, error) {
	for i := 0; i < maxReferenceAttempts; i++ {
		ref := s.newReference()
		if _, ok := assigned[ref]; ok {
			continue
		}

		exists, err := s.repo.ExistsByCustomerID(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("failed to check customer id: %w", err)
		}
		if !exists {
			assigned[ref] = struct{}{}
			return ref, nil
		}
	}

	return "", fmt.Errorf("%w: no unique customer id after %d attempts", xerrors.ErrConflict, maxReferenceAttempts)
}

// randomCustomerID formats CU-NNNNN with N in 10000..99999.
func randomCustomerID() string {
	entropy := ulid.Make().Entropy()
	n := binary.BigEndian.Uint32(entropy[:4]) % 90000
	return fmt.Sprintf("CU-%d", 10000+n)
}
