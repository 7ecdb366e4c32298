package customer

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"dedupe-service/internal/domain/customer"
	xerrors "dedupe-service/internal/pkg/errors"
	"dedupe-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sequence(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestBulkCreate_AssignsCleanRecords(t *testing.T) {
	svc := NewCustomerService(memory.NewCustomerRecordRepository(), zap.NewNop())

	resp, err := svc.BulkCreate(context.Background(), &customer.BulkCreateRequest{Records: []customer.NewRecordRequest{
		{FirstName: " Juan ", LastName: "Perez", Phone: "555-0100"},
		{FirstName: "Maria", LastName: "Lopez"},
	}})
	require.NoError(t, err)
	require.Equal(t, 2, resp.RecordCount)

	pattern := regexp.MustCompile(`^CU-[1-9]\d{4}$`)
	for _, rec := range resp.Records {
		assert.Regexp(t, pattern, rec.CustomerID)
		assert.Equal(t, customer.StatusClean, rec.Status)
		assert.NotNil(t, rec.MergedFrom)
		assert.NotZero(t, rec.ID)
	}
	assert.Equal(t, "Juan", resp.Records[0].FirstName)
	assert.NotEqual(t, resp.Records[0].CustomerID, resp.Records[1].CustomerID)
}

func TestBulkCreate_RetriesTakenIDs(t *testing.T) {
	repo := memory.NewCustomerRecordRepository()
	require.NoError(t, repo.BulkCreate(context.Background(), []customer.Record{{CustomerID: "CU-11111"}}))

	svc := NewCustomerService(repo, zap.NewNop())
	svc.newReference = sequence("CU-11111", "CU-22222", "CU-22222", "CU-33333")

	resp, err := svc.BulkCreate(context.Background(), &customer.BulkCreateRequest{Records: []customer.NewRecordRequest{
		{FirstName: "A"}, {FirstName: "B"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "CU-22222", resp.Records[0].CustomerID)
	assert.Equal(t, "CU-33333", resp.Records[1].CustomerID)
}

func TestBulkCreate_GivesUpAfterMaxAttempts(t *testing.T) {
	repo := memory.NewCustomerRecordRepository()
	require.NoError(t, repo.BulkCreate(context.Background(), []customer.Record{{CustomerID: "CU-11111"}}))

	svc := NewCustomerService(repo, zap.NewNop())
	svc.newReference = sequence("CU-11111")

	_, err := svc.BulkCreate(context.Background(), &customer.BulkCreateRequest{Records: []customer.NewRecordRequest{{FirstName: "A"}}})
	assert.True(t, xerrors.Is(err, xerrors.ErrConflict))

	stats, err := repo.GetStats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalRecords)
}

func TestList_Pagination(t *testing.T) {
	repo := memory.NewCustomerRecordRepository()
	records := make([]customer.Record, 0, 45)
	for i := 0; i < 45; i++ {
		records = append(records, customer.Record{CustomerID: fmt.Sprintf("CU-%d", 10000+i)})
	}
	require.NoError(t, repo.BulkCreate(context.Background(), records))
	svc := NewCustomerService(repo, zap.NewNop())

	resp, err := svc.List(context.Background(), &customer.ListFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, defaultPageSize, resp.PageSize)
	assert.Len(t, resp.Records, defaultPageSize)
	assert.EqualValues(t, 45, resp.Total)
	assert.Equal(t, 3, resp.TotalPages)

	resp, err = svc.List(context.Background(), &customer.ListFilters{Page: 3, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, resp.PageSize)
	assert.Empty(t, resp.Records)
}

func TestSearchAndGet(t *testing.T) {
	repo := memory.NewCustomerRecordRepository()
	require.NoError(t, repo.BulkCreate(context.Background(), []customer.Record{
		{CustomerID: "CU-10001", FirstName: "Juan", LastName: "Perez"},
		{CustomerID: "CU-10002", FirstName: "Maria", LastName: "Lopez"},
	}))
	svc := NewCustomerService(repo, zap.NewNop())
	ctx := context.Background()

	found, err := svc.Search(ctx, "perez")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "CU-10001", found[0].CustomerID)

	_, err = svc.Search(ctx, "  ")
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	rec, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Maria", rec.FirstName)

	_, err = svc.Get(ctx, 9)
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))
}

func TestStatsAndClearAll(t *testing.T) {
	repo := memory.NewCustomerRecordRepository()
	require.NoError(t, repo.BulkCreate(context.Background(), []customer.Record{
		{CustomerID: "CU-10001"},
		{CustomerID: "CU-10002", Status: customer.StatusMergedInto},
	}))
	svc := NewCustomerService(repo, zap.NewNop())
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalRecords)
	assert.EqualValues(t, 1, stats.DuplicatesSeen)

	n, err := svc.ClearAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRecords)
}
