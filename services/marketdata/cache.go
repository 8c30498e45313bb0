package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"stock_screener/metrics"
)

const cacheKeyPrefix = "snapshot:"

// CachedProvider serves snapshots from Redis when a fresh copy exists.
// Redis failures are logged and fall through to the wrapped provider.
type CachedProvider struct {
	next    Provider
	rdb     *redis.Client
	ttl     time.Duration
	metrics *metrics.Registry
}

// NewCachedProvider wraps next with a Redis cache
func NewCachedProvider(next Provider, rdb *redis.Client, ttl time.Duration, m *metrics.Registry) *CachedProvider {
	return &CachedProvider{
		next:    next,
		rdb:     rdb,
		ttl:     ttl,
		metrics: m,
	}
}

func cacheKey(symbol string) string {
	return cacheKeyPrefix + strings.ToUpper(symbol)
}

func (c *CachedProvider) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	key := cacheKey(symbol)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var snap Snapshot
		if jsonErr := json.Unmarshal([]byte(cached), &snap); jsonErr == nil {
			c.metrics.CacheLookup("hit")
			// the key is case-insensitive, the caller's symbol is not
			snap.Symbol = symbol
			snap.Cached = true
			return &snap, nil
		}
		log.Warn().Str("key", key).Msg("Discarding unreadable cached snapshot")
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Str("key", key).Msg("Snapshot cache read failed")
	}
	c.metrics.CacheLookup("miss")

	snap, err := c.next.Snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Snapshot cache write failed")
	}
	return snap, nil
}
