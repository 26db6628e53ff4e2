// Package integration exercises the Persistence Gateway against a real
// PostgreSQL instance.
package integration

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mavedb/worker/internal/persistence/postgres"
)

// GetTestStorageDSN returns the DSN for the integration database, skipping
// the test when MAVEDB_TEST_STORAGE_DSN is unset so `go test ./...` stays
// usable without a live Postgres.
func GetTestStorageDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MAVEDB_TEST_STORAGE_DSN")
	if dsn == "" {
		t.Skip("MAVEDB_TEST_STORAGE_DSN not set, skipping postgres integration test")
	}
	return dsn
}

// SetupTestStore opens a migrated pool against the test database and
// truncates the job-pipeline tables before and after the test.
func SetupTestStore(t *testing.T) (*postgres.Store, context.Context) {
	t.Helper()

	dsn := GetTestStorageDSN(t)
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{DSN: dsn})
	require.NoError(t, err)

	truncate := func() {
		_, _ = pool.Exec(ctx, "TRUNCATE TABLE annotation_status, job_dependencies, job_runs, pipelines CASCADE")
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		pool.Close()
	})

	return postgres.NewStore(pool), ctx
}
