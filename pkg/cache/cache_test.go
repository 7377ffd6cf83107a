package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var out []string
	hit, err := s.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, s.Set(ctx, "k", []string{"a", "b"}, time.Minute))
	hit, err = s.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, out)

	require.NoError(t, s.Del(ctx, "k"))
	hit, _ = s.Get(ctx, "k", &out)
	assert.False(t, hit)
}

func TestMemoryStore_Expires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", 1, time.Second))
	var n int
	hit, _ := s.Get(ctx, "k", &n)
	assert.True(t, hit)

	now = now.Add(time.Second)
	hit, _ = s.Get(ctx, "k", &n)
	assert.False(t, hit)
}

func TestMemoryStore_DecodeError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", "text", 0))

	var n int
	_, err := s.Get(ctx, "k", &n)
	assert.Error(t, err)
}

func TestRedisStore_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	s := NewRedisStore(rdb, "test:")

	assert.Error(t, s.Ping(context.Background()))
	var out string
	hit, err := s.Get(context.Background(), "k", &out)
	assert.False(t, hit)
	assert.Error(t, err)
}
