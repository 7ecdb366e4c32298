package customer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dedupe-service/internal/domain/customer"
	"dedupe-service/internal/repository/memory"
	service "dedupe-service/internal/service/customer"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRouter(t *testing.T) (*gin.Engine, *memory.CustomerRecordRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewCustomerRecordRepository()
	h := NewCustomerHandler(service.NewCustomerService(repo, zap.NewNop()))

	r := gin.New()
	g := r.Group("/api/v1/customers")
	g.GET("", h.ListCustomers)
	g.GET("/search", h.SearchCustomers)
	g.GET("/stats", h.GetStats)
	g.GET("/:id", h.GetCustomer)
	g.POST("/bulk", h.BulkCreate)
	g.DELETE("", h.ClearAll)
	return r, repo
}

func request(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, target))
}

func TestBulkCreateAndList(t *testing.T) {
	r, _ := setupRouter(t)

	w := request(r, http.MethodPost, "/api/v1/customers/bulk",
		`{"records":[{"first_name":"Juan","last_name":"Perez","phone":"555-0100"},{"first_name":"Maria","last_name":"Lopez"}]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created customer.BulkCreateResponse
	decodeData(t, w, &created)
	assert.Equal(t, 2, created.RecordCount)

	w = request(r, http.MethodGet, "/api/v1/customers?page_size=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list customer.ListResponse
	decodeData(t, w, &list)
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, 2, list.TotalPages)
	assert.Len(t, list.Records, 1)
}

func TestBulkCreate_RejectsEmpty(t *testing.T) {
	r, _ := setupRouter(t)

	w := request(r, http.MethodPost, "/api/v1/customers/bulk", `{"records":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListExcludesMerged(t *testing.T) {
	r, repo := setupRouter(t)
	require.NoError(t, repo.BulkCreate(context.Background(), []customer.Record{
		{CustomerID: "CU-10001", Status: customer.StatusMerged},
		{CustomerID: "CU-10002", Status: customer.StatusMergedInto},
	}))

	w := request(r, http.MethodGet, "/api/v1/customers?exclude_merged=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list customer.ListResponse
	decodeData(t, w, &list)
	require.Len(t, list.Records, 1)
	assert.Equal(t, "CU-10001", list.Records[0].CustomerID)

	w = request(r, http.MethodGet, "/api/v1/customers?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCustomer(t *testing.T) {
	r, repo := setupRouter(t)
	require.NoError(t, repo.BulkCreate(context.Background(), []customer.Record{{CustomerID: "CU-10001", FirstName: "Ana"}}))

	w := request(r, http.MethodGet, "/api/v1/customers/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec customer.Record
	decodeData(t, w, &rec)
	assert.Equal(t, "Ana", rec.FirstName)

	assert.Equal(t, http.StatusNotFound, request(r, http.MethodGet, "/api/v1/customers/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, request(r, http.MethodGet, "/api/v1/customers/abc", "").Code)
}

func TestSearchStatsAndClear(t *testing.T) {
	r, repo := setupRouter(t)
	require.NoError(t, repo.BulkCreate(context.Background(), []customer.Record{
		{CustomerID: "CU-10001", FirstName: "Juan", LastName: "Perez"},
		{CustomerID: "CU-10002", FirstName: "Maria", LastName: "Lopez", Status: customer.StatusMergedInto},
	}))

	w := request(r, http.MethodGet, "/api/v1/customers/search?q=lopez", "")
	require.Equal(t, http.StatusOK, w.Code)
	var found []customer.Record
	decodeData(t, w, &found)
	require.Len(t, found, 1)
	assert.Equal(t, "CU-10002", found[0].CustomerID)

	assert.Equal(t, http.StatusBadRequest, request(r, http.MethodGet, "/api/v1/customers/search", "").Code)

	w = request(r, http.MethodGet, "/api/v1/customers/stats", "")
	var stats customer.Stats
	decodeData(t, w, &stats)
	assert.EqualValues(t, 2, stats.TotalRecords)
	assert.EqualValues(t, 1, stats.MergedInto)
	assert.EqualValues(t, 1, stats.DuplicatesSeen)

	w = request(r, http.MethodDelete, "/api/v1/customers", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cleared map[string]int64
	decodeData(t, w, &cleared)
	assert.EqualValues(t, 2, cleared["deleted"])
}
