package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"nexlook/internal/recommend"
)

const probeKeyPrefix = "nexlook:probe:"

// ProbeCache remembers image URLs that passed the HEAD probe for a limited time.
type ProbeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProbeCache(client *redis.Client, ttl time.Duration) *ProbeCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProbeCache{client: client, ttl: ttl}
}

func (c *ProbeCache) Seen(ctx context.Context, imageURL string) (bool, error) {
	err := c.client.Get(ctx, probeKey(imageURL)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *ProbeCache) Remember(ctx context.Context, imageURL string) error {
	return c.client.Set(ctx, probeKey(imageURL), "1", c.ttl).Err()
}

func probeKey(imageURL string) string {
	sum := sha256.Sum256([]byte(imageURL))
	return probeKeyPrefix + hex.EncodeToString(sum[:])
}

var _ recommend.ProbeCache = (*ProbeCache)(nil)
