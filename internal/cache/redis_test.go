package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:"), mr
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, ProductKey("p1"), []byte(`{"id":"p1"}`), time.Minute))
	assert.True(t, mr.Exists("test:product:p1"))

	data, err := store.Get(ctx, ProductKey("p1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1"}`, string(data))

	ttl := mr.TTL("test:product:p1")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.Less(t, ttl, 67*time.Second)

	require.NoError(t, store.Delete(ctx, ProductKey("p1"), CartKey("u1")))
	_, err = store.Get(ctx, ProductKey("p1"))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, CartKey("u1"), []byte(`{}`), time.Second))
	mr.FastForward(2 * time.Second)

	_, err := store.Get(ctx, CartKey("u1"))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), ProductKey("p1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
