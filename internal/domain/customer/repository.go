// internal/domain/customer/repository.go
package customer

import "context"

// RecordStore is all the dedupe engine needs from storage.
type RecordStore interface {
	FindAll(ctx context.Context) ([]Record, error)
	FindByID(ctx context.Context, id int64) (*Record, error)
	Update(ctx context.Context, id int64, record *Record) error
}

type Repository interface {
	RecordStore

	// Ingest
	BulkCreate(ctx context.Context, records []Record) error
	ExistsByCustomerID(ctx context.Context, customerID string) (bool, error)

	// Query
	List(ctx context.Context, filters *ListFilters) ([]Record, int64, error)
	GetStats(ctx context.Context) (*Stats, error)

	// Admin
	ClearAll(ctx context.Context) (int64, error)
}
