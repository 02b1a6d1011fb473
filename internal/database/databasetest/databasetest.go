// Package databasetest opens throwaway migrated databases for tests.
package databasetest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smart-parking/internal/database"
)

// Open returns a migrated SQLite database in a per-test temp directory. The
// pool is closed when the test ends.
func Open(t testing.TB) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "parking.db"),
		TxTimeout:    10 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// OpenServer returns a migrated MySQL or PostgreSQL database described by
// TEST_DB_DRIVER, TEST_DB_USER, TEST_DB_PASS, TEST_DB_HOST, TEST_DB_PORT and
// TEST_DB_NAME. The test is skipped when TEST_DB_DRIVER is unset. Tables are
// shared between runs; callers seed fresh lots and never assume empty tables.
func OpenServer(t testing.TB) *database.DB {
	t.Helper()
	driver := os.Getenv("TEST_DB_DRIVER")
	if driver == "" {
		t.Skip("TEST_DB_DRIVER not set; skipping server database test")
	}
	db, err := database.Open(database.Config{
		Driver:       driver,
		User:         os.Getenv("TEST_DB_USER"),
		Pass:         os.Getenv("TEST_DB_PASS"),
		Host:         os.Getenv("TEST_DB_HOST"),
		Port:         os.Getenv("TEST_DB_PORT"),
		Name:         os.Getenv("TEST_DB_NAME"),
		SSLMode:      os.Getenv("TEST_DB_SSLMODE"),
		LockTimeout:  5 * time.Second,
		TxTimeout:    10 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}
