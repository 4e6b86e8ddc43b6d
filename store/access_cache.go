package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxim-sld/meditation-bot/types"
)

type kvCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	generateKey(keys ...string) string
}

// AccessCache remembers positive grant lookups in Redis. Negative answers
// always go to the underlying store so a fresh settlement is visible on the
// next check, and a cached subscription never outlives its expiry.
type AccessCache struct {
	next  types.GrantReader
	cache kvCache
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

func NewAccessCache(next types.GrantReader, cache *RedisClient, ttl time.Duration, log zerolog.Logger) *AccessCache {
	return newAccessCache(next, cache, ttl, log)
}

func newAccessCache(next types.GrantReader, cache kvCache, ttl time.Duration, log zerolog.Logger) *AccessCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AccessCache{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "access_cache").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (c *AccessCache) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	now := c.now()
	key := c.cache.generateKey("access", "sub", userID)

	var cached time.Time
	err := c.cache.Get(ctx, key, &cached)
	switch {
	case err == nil && cached.After(now):
		return true, nil
	case err != nil && !errors.Is(err, errCacheMiss):
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	expiresAt, ok, err := c.next.LatestSubscriptionExpiry(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok || !expiresAt.After(now) {
		return false, nil
	}
	ttl := c.ttl
	if left := expiresAt.Sub(now); left < ttl {
		ttl = left
	}
	if err := c.cache.Set(ctx, key, expiresAt, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return true, nil
}

func (c *AccessCache) LatestSubscriptionExpiry(ctx context.Context, userID string) (time.Time, bool, error) {
	return c.next.LatestSubscriptionExpiry(ctx, userID)
}

func (c *AccessCache) HasPurchase(ctx context.Context, userID string, packageID int64) (bool, error) {
	key := c.cache.generateKey("access", "pkg", userID, strconv.FormatInt(packageID, 10))

	var owned bool
	err := c.cache.Get(ctx, key, &owned)
	switch {
	case err == nil && owned:
		return true, nil
	case err != nil && !errors.Is(err, errCacheMiss):
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	owned, err = c.next.HasPurchase(ctx, userID, packageID)
	if err != nil || !owned {
		return owned, err
	}
	if err := c.cache.Set(ctx, key, true, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return true, nil
}
