package db

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func columnExists(t *testing.T, database *DB, table, column string) bool {
	t.Helper()
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestNewDB_AppliesMigrations(t *testing.T) {
	database := newTestDB(t)

	migFS, err := getMigrationsFS()
	require.NoError(t, err)
	version, dirty, err := database.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.Equal(t, uint(LatestSchemaVersion), version)
	assert.False(t, dirty)

	assert.True(t, columnExists(t, database, "grading_runs", "summary_json"))
	assert.True(t, columnExists(t, database, "grading_run_lanes", "speed_limit_kmph"))

	// Re-running is a no-op.
	require.NoError(t, database.MigrateUp(migFS))
}

func TestOpenDB_Pragmas(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	defer database.Close()

	var journalMode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, database.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "runs.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dsn("runs.db"))
	assert.Equal(t, "file:runs.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dsn("file:runs.db?mode=rwc"))
}

func TestMigrateDownAndTo(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer database.Close()
	migFS, err := getMigrationsFS()
	require.NoError(t, err)

	version, _, err := database.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, database.MigrateTo(migFS, 1))
	assert.True(t, columnExists(t, database, "grading_runs", "run_id"))
	assert.False(t, columnExists(t, database, "grading_runs", "summary_json"))

	require.NoError(t, database.MigrateUp(migFS))
	assert.True(t, columnExists(t, database, "grading_runs", "summary_json"))

	require.NoError(t, database.MigrateDown(migFS))
	version, _, err = database.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, columnExists(t, database, "grading_runs", "summary_json"))
}

func TestNewMigrate_NilFS(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "n.db"))
	require.NoError(t, err)
	defer database.Close()

	assert.Error(t, database.MigrateUp(nil))
}

func TestRunMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	require.NoError(t, RunMigrateCommand([]string{"up"}, dbPath, &out))
	assert.Contains(t, out.String(), "All migrations applied")
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"down"}, dbPath, &out))
	assert.Contains(t, out.String(), "Current version: 1")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"version", "2"}, dbPath, &out))
	assert.Contains(t, out.String(), "Migrated to version 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"status"}, dbPath, &out))
	assert.Contains(t, out.String(), "dirty: false")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"help"}, "", &out))
	assert.Contains(t, out.String(), "Database Migration Commands")

	assert.Error(t, RunMigrateCommand(nil, dbPath, &out))
	assert.Error(t, RunMigrateCommand([]string{"sideways"}, dbPath, &out))
	assert.Error(t, RunMigrateCommand([]string{"version"}, dbPath, &out))
	assert.Error(t, RunMigrateCommand([]string{"version", "abc"}, dbPath, &out))
	assert.Error(t, RunMigrateCommand([]string{"up"}, "", &out))
}
