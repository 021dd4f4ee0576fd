package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestMigrateCreatesSchema(t *testing.T) {
	database := openMemoryDB(t)

	require.NoError(t, Migrate(database, nil))

	for _, table := range []string{"schema_migrations", "contents", "scheduled_publications"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	database := openMemoryDB(t)

	require.NoError(t, Migrate(database, nil))
	require.NoError(t, Migrate(database, nil))

	var applied int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 3, applied)
}
