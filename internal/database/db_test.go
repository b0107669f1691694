package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a temp-file SQLite database. The name controls which
// embedded schema Migrate applies; "scratch" matches none.
func setupTestDB(t *testing.T, name string) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestWithTransactionCommits(t *testing.T) {
	db := setupTestDB(t, "scratch")
	_, err := db.Exec("CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)")
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO kv (k, v) VALUES ('a', '1')")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count))
	assert.Equal(t, 1, count, "committed row should persist")
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := setupTestDB(t, "scratch")
	_, err := db.Exec("CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO kv (k, v) VALUES ('a', '1')"); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom), "original error should be wrapped")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count))
	assert.Equal(t, 0, count, "failed transaction should leave no rows")
}

func TestWithTransactionRecoversPanic(t *testing.T) {
	db := setupTestDB(t, "scratch")
	_, err := db.Exec("CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)")
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO kv (k, v) VALUES ('a', '1')"); err != nil {
			return err
		}
		panic("mid-transaction panic")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count))
	assert.Equal(t, 0, count, "panicked transaction should roll back")
}

func TestWithTransactionNilConnection(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	require.Error(t, err)
}

func TestMigrateAppliesStrategiesSchema(t *testing.T) {
	db := setupTestDB(t, "strategies")
	require.NoError(t, db.Migrate())

	for _, table := range []string{"strategies", "settings"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist after migration", table)
	}

	// Re-running against an up-to-date database is a no-op.
	require.NoError(t, db.Migrate())
}

func TestMigrateAppliesMCNSchema(t *testing.T) {
	db := setupTestDB(t, "mcn")
	require.NoError(t, db.Migrate())

	for _, table := range []string{"fingerprints", "lineage_edges", "regime_snapshots"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist after migration", table)
	}
}

func TestMigrateUnknownNameIsNoOp(t *testing.T) {
	db := setupTestDB(t, "scratch")
	require.NoError(t, db.Migrate())

	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'",
	).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestHealthCheckAndStats(t *testing.T) {
	db := setupTestDB(t, "strategies")
	require.NoError(t, db.Migrate())
	ctx := context.Background()
	require.NoError(t, db.HealthCheck(ctx))
	require.NoError(t, db.QuickCheck(ctx))

	// Checkpoint so the schema pages land in the main file before stat.
	require.NoError(t, db.WALCheckpoint("TRUNCATE"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.SizeBytes, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
	assert.GreaterOrEqual(t, stats.PageCount, int64(1))
}
