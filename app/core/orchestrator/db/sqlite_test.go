package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSQLiteDBCreatesSchema(t *testing.T) {
	tempDir := t.TempDir()

	database, err := NewSQLiteDB(tempDir)
	require.NoError(t, err)
	defer database.Close()

	for _, table := range []string{"tasks", "conversations", "messages", "schema_meta"} {
		var name string
		err := database.Conn().QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}

	// priority column arrives with migration 2
	rows, err := database.Conn().Query(`SELECT priority FROM tasks LIMIT 1`)
	require.NoError(t, err)
	rows.Close()
}

func TestNewSQLiteDBReopenIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()

	first, err := NewSQLiteDB(tempDir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteDB(tempDir)
	require.NoError(t, err)
	defer second.Close()

	var version string
	err = second.Conn().QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&version)
	require.NoError(t, err)
	require.Equal(t, "2", version)
}
