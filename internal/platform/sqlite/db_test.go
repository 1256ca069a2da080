package sqlite

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("data/bot.db", DefaultDBOptions())

	path, query, ok := strings.Cut(dsn, "?")
	require.True(t, ok)
	assert.Equal(t, "data/bot.db", path)

	values, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"foreign_keys(1)",
		"synchronous(NORMAL)",
		"journal_mode(WAL)",
		"busy_timeout(5000)",
	}, values["_pragma"])
}

func TestBuildDSN_NoWAL(t *testing.T) {
	opts := DefaultDBOptions()
	opts.WALMode = false
	opts.BusyTimeout = 0

	values, err := url.ParseQuery(strings.SplitN(buildDSN(":memory:", opts), "?", 2)[1])
	require.NoError(t, err)
	assert.NotContains(t, values["_pragma"], "journal_mode(WAL)")
	assert.Len(t, values["_pragma"], 2)
}

func TestNewInMemoryDB(t *testing.T) {
	db, err := NewInMemoryDB(context.Background())
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestNewDB_CreatesDirectoryAndAppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "bot.db")

	db, err := NewDB(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, path)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}
