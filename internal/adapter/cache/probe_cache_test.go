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

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestProbeCacheRememberAndExpire(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewProbeCache(client, time.Minute)
	ctx := context.Background()
	url := "https://res.cloudinary.com/demo/a.jpg"

	seen, err := cache.Seen(ctx, url)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, cache.Remember(ctx, url))
	seen, err = cache.Seen(ctx, url)
	require.NoError(t, err)
	assert.True(t, seen)

	key := probeKey(url)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(2 * time.Minute)
	seen, err = cache.Seen(ctx, url)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestProbeCacheKeysAreHashed(t *testing.T) {
	key := probeKey("https://res.cloudinary.com/demo/a.jpg?x=1")
	assert.Len(t, key, len(probeKeyPrefix)+64)
	assert.NotEqual(t, key, probeKey("https://res.cloudinary.com/demo/a.jpg?x=2"))
}

func TestProbeCacheUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewProbeCache(client, 0)
	mr.Close()

	_, err := cache.Seen(context.Background(), "https://res.cloudinary.com/a.jpg")
	assert.Error(t, err)
}
