package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dedupe-service/internal/domain/customer"
	customerHandler "dedupe-service/internal/handlers/customer"
	dedupeHandler "dedupe-service/internal/handlers/dedupe"
	"dedupe-service/internal/pkg/jwt"
	"dedupe-service/internal/repository/memory"
	customersvc "dedupe-service/internal/service/customer"
	dedupesvc "dedupe-service/internal/service/dedupe"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startAPI(t *testing.T) (*httptest.Server, *memory.CustomerRecordRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewCustomerRecordRepository()
	require.NoError(t, repo.BulkCreate(context.Background(), []customer.Record{
		{CustomerID: "CU-50001", FirstName: "Juan", LastName: "Perez", Phone: "555-0100"},
		{CustomerID: "CU-50002", FirstName: "J.", LastName: "Perez", Phone: "5550100"},
		{CustomerID: "CU-50003", FirstName: "Maria", LastName: "Lopez"},
		{CustomerID: "CU-50004", FirstName: "Maria", LastName: "Lopez"},
	}))

	logger := zap.NewNop()
	dh := dedupeHandler.NewDedupeHandler(dedupesvc.NewDedupeService(repo, nil, logger, dedupesvc.Options{ExcludeMerged: true}), logger)
	ch := customerHandler.NewCustomerHandler(customersvc.NewCustomerService(repo, logger))

	r := gin.New()
	r.GET("/api/v1/find-duplicates", dh.FindDuplicates)
	r.POST("/api/v1/merge-duplicates", dh.Merge)
	r.POST("/api/v1/merge-duplicates/batch", dh.MergeBatch)
	r.GET("/api/v1/customers/stats", ch.GetStats)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFindCommand(t *testing.T) {
	srv, _ := startAPI(t)

	out, err := runCLI(t, "--server", srv.URL, "find")
	require.NoError(t, err)
	assert.Contains(t, out, "phone_exact")
	assert.Contains(t, out, "name_exact")
	assert.Contains(t, out, "1,2")
	assert.Contains(t, out, "2 groups")

	out, err = runCLI(t, "--server", srv.URL, "find", "--reason", "name_exact")
	require.NoError(t, err)
	assert.NotContains(t, out, "phone_exact")
	assert.Contains(t, out, "1 groups")
}

func TestFindCommandJSON(t *testing.T) {
	srv, _ := startAPI(t)

	out, err := runCLI(t, "--server", srv.URL, "--json", "find")
	require.NoError(t, err)
	assert.Contains(t, out, `"duplicate_groups"`)
	assert.Contains(t, out, `"total": 2`)
}

func TestMergeCommand(t *testing.T) {
	srv, repo := startAPI(t)

	out, err := runCLI(t, "--server", srv.URL, "merge", "--primary", "1", "--records", "1,2")
	require.NoError(t, err)
	assert.Contains(t, out, "Merged into CU-50001")
	assert.Contains(t, out, "Absorbed: CU-50002")

	rec, err := repo.FindByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, customer.StatusMergedInto, rec.Status)

	_, err = runCLI(t, "--server", srv.URL, "merge", "--primary", "99", "--records", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")

	_, err = runCLI(t, "--server", srv.URL, "merge", "--records", "3")
	assert.EqualError(t, err, "--primary is required")
}

func TestBatchCommand(t *testing.T) {
	srv, _ := startAPI(t)

	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"groups":[
		{"group_id":"phones","primary_id":1,"record_ids":[1,2]},
		{"group_id":"gone","primary_id":40,"record_ids":[3,4]}
	]}`), 0o600))

	out, err := runCLI(t, "--server", srv.URL, "batch", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "primary record not found")
	assert.Contains(t, out, "2 processed, 1 succeeded, 1 failed")
}

func TestBatchCommandRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"groups":[]}`), 0o600))

	_, err := runCLI(t, "batch", "--file", path)
	assert.EqualError(t, err, "batch file has no groups")
}

func TestStatsCommand(t *testing.T) {
	srv, _ := startAPI(t)

	_, err := runCLI(t, "--server", srv.URL, "merge", "--primary", "3", "--records", "4")
	require.NoError(t, err)

	out, err := runCLI(t, "--server", srv.URL, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Merged into another")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Total") {
			assert.Contains(t, line, "4")
		}
	}
}

func TestTokenCommand(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "jwt_private.pem")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	}), 0o600))

	t.Setenv("JWT_ISSUER", "dedupe-test")
	t.Setenv("JWT_AUDIENCE", "operators-test")

	out, err := runCLI(t, "token", "--key", keyPath, "--operator", "op-7", "--role", "admin")
	require.NoError(t, err)

	claims, err := jwt.NewVerifier(&priv.PublicKey, "dedupe-test", "operators-test").VerifyAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "op-7", claims.OperatorID)
	assert.True(t, claims.IsAdmin())

	_, err = runCLI(t, "token", "--key", keyPath)
	assert.EqualError(t, err, "--operator is required")
}
