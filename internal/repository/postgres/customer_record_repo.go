// internal/repository/postgres/customer_record_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dedupe-service/internal/domain/customer"
	xerrors "dedupe-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const recordColumns = `id, customer_id, first_name, last_name, phone, address, zone,
		       is_merged, merged_from, status, created_at, updated_at`

const schemaSQL = `
CREATE TABLE IF NOT EXISTS customer_records (
	id          BIGSERIAL PRIMARY KEY,
	customer_id VARCHAR(32) NOT NULL UNIQUE,
	first_name  VARCHAR(255) NOT NULL DEFAULT '',
	last_name   VARCHAR(255) NOT NULL DEFAULT '',
	phone       VARCHAR(40) NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	zone        VARCHAR(120) NOT NULL DEFAULT '',
	is_merged   BOOLEAN NOT NULL DEFAULT FALSE,
	merged_from TEXT[] NOT NULL DEFAULT '{}',
	status      VARCHAR(16) NOT NULL DEFAULT 'clean'
	            CHECK (status IN ('clean', 'merged', 'merged_into')),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_customer_records_status ON customer_records (status);
`

type CustomerRecordRepository struct {
	db *DB
}

func NewCustomerRecordRepository(db *DB) *CustomerRecordRepository {
	return &CustomerRecordRepository{db: db}
}

// EnsureSchema creates the customer_records table when it does not exist.
func (r *CustomerRecordRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Q().Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// BulkCreate inserts all records in one transaction and fills in their ids
// and timestamps.
func (r *CustomerRecordRepository) BulkCreate(ctx context.Context, records []customer.Record) error {
	query := `
		INSERT INTO customer_records (
			customer_id, first_name, last_name, phone, address, zone,
			is_merged, merged_from, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	return r.db.WithTx(ctx, func(q querier) error {
		for i := range records {
			c := &records[i]
			if c.Status == "" {
				c.Status = customer.StatusClean
			}
			if c.MergedFrom == nil {
				c.MergedFrom = pq.StringArray{}
			}

			err := q.QueryRow(
				ctx, query,
				c.CustomerID, c.FirstName, c.LastName, c.Phone, c.Address, c.Zone,
				c.IsMerged, c.MergedFrom, string(c.Status),
			).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("customer id %s: %w", c.CustomerID, xerrors.ErrDuplicateEntry)
				}
				return fmt.Errorf("failed to create record: %w", err)
			}
		}
		return nil
	})
}

// FindAll returns every record in id order.
func (r *CustomerRecordRepository) FindAll(ctx context.Context) ([]customer.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM customer_records ORDER BY id`, recordColumns)

	rows, err := r.db.Q().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FindByID retrieves a record by internal id
func (r *CustomerRecordRepository) FindByID(ctx context.Context, id int64) (*customer.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM customer_records WHERE id = $1`, recordColumns)

	c, err := scanRecord(r.db.Q().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record: %w", err)
	}
	return c, nil
}

// Update writes the merge state and person details of a record.
func (r *CustomerRecordRepository) Update(ctx context.Context, id int64, c *customer.Record) error {
	query := `
		UPDATE customer_records
		SET first_name = $1, last_name = $2, phone = $3, address = $4, zone = $5,
		    is_merged = $6, merged_from = $7, status = $8, updated_at = $9
		WHERE id = $10
	`

	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	mergedFrom := c.MergedFrom
	if mergedFrom == nil {
		mergedFrom = pq.StringArray{}
	}

	result, err := r.db.Q().Exec(
		ctx, query,
		c.FirstName, c.LastName, c.Phone, c.Address, c.Zone,
		c.IsMerged, mergedFrom, string(c.Status), updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// List retrieves records with filters
func (r *CustomerRecordRepository) List(ctx context.Context, filters *customer.ListFilters) ([]customer.Record, int64, error) {
	whereClause, args := listConditions(filters)
	argPos := len(args) + 1

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM customer_records WHERE %s", whereClause)
	if err := r.db.Q().QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM customer_records
		WHERE %s
		ORDER BY id
	`, recordColumns, whereClause)

	if filters.PageSize > 0 {
		page := filters.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, filters.PageSize, (page-1)*filters.PageSize)
	}

	rows, err := r.db.Q().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// GetStats counts records per merge status
func (r *CustomerRecordRepository) GetStats(ctx context.Context) (*customer.Stats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN status = 'clean' THEN 1 END) as clean,
			COUNT(CASE WHEN status = 'merged' THEN 1 END) as merged,
			COUNT(CASE WHEN status = 'merged_into' THEN 1 END) as merged_into
		FROM customer_records
	`

	var stats customer.Stats
	err := r.db.Q().QueryRow(ctx, query).Scan(
		&stats.TotalRecords,
		&stats.CleanRecords,
		&stats.MergedRecords,
		&stats.MergedInto,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	stats.DuplicatesSeen = stats.MergedInto

	return &stats, nil
}

// ExistsByCustomerID checks if an external id is taken
func (r *CustomerRecordRepository) ExistsByCustomerID(ctx context.Context, customerID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM customer_records WHERE customer_id = $1)`
	var exists bool
	err := r.db.Q().QueryRow(ctx, query, customerID).Scan(&exists)
	return exists, err
}

// ClearAll deletes every record and reports how many were removed.
func (r *CustomerRecordRepository) ClearAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.WithTx(ctx, func(q querier) error {
		result, err := q.Exec(ctx, `DELETE FROM customer_records`)
		if err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		deleted = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// listConditions builds the WHERE clause and its positional args.
func listConditions(filters *customer.ListFilters) (string, []interface{}) {
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argPos := 1

	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filters.Status)
		argPos++
	}

	if filters.ExcludeMerged {
		conditions = append(conditions, "status <> 'merged_into'")
	}

	if s := strings.TrimSpace(filters.Search); s != "" {
		conditions = append(conditions, fmt.Sprintf(
			`((first_name || ' ' || last_name) ILIKE $%d ESCAPE '\' OR phone ILIKE $%d ESCAPE '\' OR customer_id ILIKE $%d ESCAPE '\')`,
			argPos, argPos, argPos,
		))
		args = append(args, containsPattern(s))
		argPos++
	}

	return strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches s literally anywhere in the column.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func scanRecord(row pgx.Row) (*customer.Record, error) {
	var c customer.Record
	var status string
	err := row.Scan(
		&c.ID, &c.CustomerID, &c.FirstName, &c.LastName, &c.Phone, &c.Address, &c.Zone,
		&c.IsMerged, &c.MergedFrom, &status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = customer.Status(status)
	return &c, nil
}

func scanRecords(rows pgx.Rows) ([]customer.Record, error) {
	records := []customer.Record{}
	for rows.Next() {
		c, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ customer.Repository = (*CustomerRecordRepository)(nil)
