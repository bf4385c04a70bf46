package quotes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xtrntr/stocksim/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "quote:"

// Cache decorates a Provider with a Redis TTL cache. A miss or a Redis
// failure falls through to the wrapped provider; caching never fails a
// lookup. Unknown symbols are not cached.
type Cache struct {
	next Provider
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCache wraps a provider with a Redis cache
func NewCache(next Provider, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("client", "quote-cache").Logger(),
	}
}

// Lookup returns a cached quote if fresh, otherwise fetches and caches one
func (c *Cache) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	key := cacheKeyPrefix + symbol

	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var quote models.Quote
		if err := json.Unmarshal(b, &quote); err == nil {
			c.log.Debug().Str("symbol", symbol).Msg("Cache hit")
			return quote, nil
		}
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Cache read failed")
	}

	quote, err := c.next.Lookup(ctx, symbol)
	if err != nil {
		return models.Quote{}, err
	}

	if b, err := json.Marshal(quote); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Cache write failed")
		}
	}
	return quote, nil
}
