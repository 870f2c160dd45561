package db

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableNames(t *testing.T, path string) []string {
	t.Helper()

	database, err := Open(path)
	require.NoError(t, err)
	defer Close(database)

	var names []string
	err = database.Select(&names, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'goose%' AND name NOT LIKE 'sqlite%' ORDER BY name`)
	require.NoError(t, err)
	return names
}

func TestLocalMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	database, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(database.DB, LocalMigrations))
	// applying twice is a no-op
	require.NoError(t, RunMigrations(database.DB, LocalMigrations))
	require.NoError(t, Close(database))

	assert.Equal(t, []string{"credentials", "posts", "users"}, tableNames(t, path))

	database, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, MigrateDown(database.DB, LocalMigrations))
	require.NoError(t, Close(database))

	assert.Empty(t, tableNames(t, path))
}

func TestUnknownMigrationSet(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer Close(database)

	err = RunMigrations(database.DB, "elsewhere")
	assert.ErrorContains(t, err, "unknown migration set")
}

// createdAt is written by clients and may not be an integer, so remote
// indexes must not cast it.
func TestRemoteIndexesDoNotCast(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/remote/00001_documents.sql")
	require.NoError(t, err)

	sql := string(body)
	assert.NotContains(t, sql, "::BIGINT")
	assert.Contains(t, sql, "(collection, (body->'createdAt'))")
	assert.Contains(t, sql, "(collection, (body->>'userId'))")
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, Close(nil))
}

func writeGarbage(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not sqlite "), 800), 0o644))
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	writeGarbage(t, path)

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrStoreCorrupt)
	assert.True(t, IsCorrupt(err))

	require.NoError(t, Remove(path))
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	database, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(database.DB, LocalMigrations))
	require.NoError(t, Close(database))
}

func TestRemoveMissingFile(t *testing.T) {
	assert.NoError(t, Remove(filepath.Join(t.TempDir(), "absent.db")))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))

	plain := errors.New("disk full")
	assert.Equal(t, plain, Classify(plain))
	assert.False(t, IsCorrupt(plain))

	tagged := Classify(ErrStoreCorrupt)
	assert.Equal(t, ErrStoreCorrupt, tagged, "already tagged errors are left alone")
}
