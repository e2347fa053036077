package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askarthikey/cleverSM/internal/core/domain"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestRedisUnreadCounter(t *testing.T) {
	rdb := newTestClient(t)
	counter := NewRedisUnreadCounter(rdb, time.Minute)
	ctx := context.Background()
	userID := domain.NewID()
	t.Cleanup(func() { _ = rdb.Del(ctx, unreadKey(userID), versionKey(userID)).Err() })

	_, version, ok, err := counter.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok, "miss expected on empty cache")
	assert.Zero(t, version)

	require.NoError(t, counter.Set(ctx, userID, 7, version))
	n, _, ok, err := counter.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	ttl, err := rdb.TTL(ctx, unreadKey(userID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, counter.Invalidate(ctx, userID))
	_, version, ok, err = counter.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), version)
}

func TestRedisUnreadCounter_StaleVersionIsDropped(t *testing.T) {
	rdb := newTestClient(t)
	counter := NewRedisUnreadCounter(rdb, time.Minute)
	ctx := context.Background()
	userID := domain.NewID()
	t.Cleanup(func() { _ = rdb.Del(ctx, unreadKey(userID), versionKey(userID)).Err() })

	_, version, ok, err := counter.Get(ctx, userID)
	require.NoError(t, err)
	require.False(t, ok)

	// Une notification arrive entre la lecture et l'écriture du compteur.
	require.NoError(t, counter.Invalidate(ctx, userID))
	require.NoError(t, counter.Set(ctx, userID, 0, version))

	_, _, ok, err = counter.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok, "stale count must not be cached")
}

func TestUnreadKey(t *testing.T) {
	assert.Equal(t, "notifications:unread:abc", unreadKey("abc"))
	assert.Equal(t, "notifications:unread:abc:v", versionKey("abc"))
	assert.Equal(t, DefaultUnreadTTL, NewRedisUnreadCounter(nil, 0).ttl)
}
