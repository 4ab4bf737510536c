// internal/catalog/cache.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"offer-estimation/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "catalog:"

// CachedLookup puts a Redis read-through cache in front of another Lookup.
// Cache failures are logged and bypassed; only the backing lookup can fail a call.
type CachedLookup struct {
	next   Lookup
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedLookup(next Lookup, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedLookup {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedLookup{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "catalog-cache"}),
	}
}

func CacheKey(key string) string {
	return cacheKeyPrefix + key
}

func (c *CachedLookup) Lookup(ctx context.Context, key string) ([]Entry, error) {
	cacheKey := CacheKey(key)

	raw, err := c.rdb.Get(ctx, cacheKey).Result()
	switch {
	case err == nil:
		var entries []Entry
		if jsonErr := json.Unmarshal([]byte(raw), &entries); jsonErr == nil {
			return entries, nil
		}
		c.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"key": cacheKey})
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("catalog cache read failed", map[string]interface{}{
			"key":   cacheKey,
			"error": err.Error(),
		})
	}

	entries, err := c.next.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}

	payload, err := json.Marshal(entries)
	if err == nil {
		err = c.rdb.Set(ctx, cacheKey, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("catalog cache write failed", map[string]interface{}{
			"key":   cacheKey,
			"error": err.Error(),
		})
	}
	return entries, nil
}

// Invalidate drops cached entries for the given lookup keys.
func (c *CachedLookup) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	cacheKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		cacheKeys = append(cacheKeys, CacheKey(k))
	}
	return c.rdb.Del(ctx, cacheKeys...).Err()
}
