package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteCreatesParentDir(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "db", "products.db")

	db, err := Open(Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer Close(db)

	_, err = os.Stat(filepath.Dir(dsn))
	assert.NoError(t, err)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
}

func TestEnsureSQLiteDir_SkipsMemory(t *testing.T) {
	assert.NoError(t, ensureSQLiteDir(":memory:"))
	assert.NoError(t, ensureSQLiteDir("file::memory:?cache=shared"))
	assert.NoError(t, ensureSQLiteDir("products.db"))
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
