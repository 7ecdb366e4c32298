package postgres

import (
	"context"
	"os"
	"testing"

	"dedupe-service/internal/db"
	"dedupe-service/internal/domain/customer"
	xerrors "dedupe-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestRepo connects to TEST_DATABASE_URL and empties customer_records.
func openTestRepo(t *testing.T) *CustomerRecordRepository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.ConnectDB(ctx, url)
	require.NoError(t, err)
	store := NewDB(pool)
	t.Cleanup(store.Close)

	repo := NewCustomerRecordRepository(store)
	require.NoError(t, repo.EnsureSchema(ctx))
	_, err = repo.ClearAll(ctx)
	require.NoError(t, err)
	return repo
}

func TestCustomerRecordRepository_RoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	records := []customer.Record{
		{CustomerID: "CU-60001", FirstName: "Juan", LastName: "Perez", Phone: "555-0100"},
		{CustomerID: "CU-60002", FirstName: "J.", LastName: "Perez", Phone: "5550100"},
	}
	require.NoError(t, repo.BulkCreate(ctx, records))
	require.NotZero(t, records[0].ID)

	second := records[1]
	second.Status = customer.StatusMergedInto
	second.IsMerged = true
	require.NoError(t, repo.Update(ctx, second.ID, &second))

	got, err := repo.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, customer.StatusMergedInto, got.Status)

	list, total, err := repo.List(ctx, &customer.ListFilters{ExcludeMerged: true, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "CU-60001", list[0].CustomerID)

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalRecords)
	assert.EqualValues(t, 1, stats.MergedInto)

	_, err = repo.FindByID(ctx, 999999)
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))
}

func TestCustomerRecordRepository_BulkCreateRollsBackOnDuplicate(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	err := repo.BulkCreate(ctx, []customer.Record{
		{CustomerID: "CU-60010", FirstName: "Ana"},
		{CustomerID: "CU-60010", FirstName: "Anna"},
	})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.ErrDuplicateEntry))

	exists, err := repo.ExistsByCustomerID(ctx, "CU-60010")
	require.NoError(t, err)
	assert.False(t, exists)
}
