package repositories_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalogsync/app/repositories"
)

func TestLock_SharedAcrossConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.db")
	first := repositories.NewLockRepository(openDB(t, path))
	second := repositories.NewLockRepository(openDB(t, path))
	ctx := context.Background()

	ok, err := first.Acquire(ctx, "catalog:sync", "run-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, "catalog:sync", "run-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "live lease blocks other owners")

	ok, err = first.Acquire(ctx, "catalog:sync", "run-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lease is not reentrant")

	require.NoError(t, second.Release(ctx, "catalog:sync", "run-b"))
	ok, err = second.Acquire(ctx, "catalog:sync", "run-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "release by a non-holder keeps the lease")

	require.NoError(t, first.Release(ctx, "catalog:sync", "run-a"))
	ok, err = second.Acquire(ctx, "catalog:sync", "run-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_ExpiredLeaseIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.db")
	locks := repositories.NewLockRepository(openDB(t, path))
	ctx := context.Background()

	ok, err := locks.Acquire(ctx, "catalog:sync", "crashed", -time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = locks.Acquire(ctx, "catalog:sync", "next", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, locks.Release(ctx, "catalog:sync", "crashed"))
	ok, err = locks.Acquire(ctx, "catalog:sync", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "stale holder cannot release the new lease")
}

func TestLock_NoDatabase(t *testing.T) {
	_, err := repositories.NewLockRepository(nil).Acquire(context.Background(), "x", "y", time.Minute)
	assert.ErrorIs(t, err, repositories.ErrStorageUnavailable)
}
