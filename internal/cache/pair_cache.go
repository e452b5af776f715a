package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultPairTTL = time.Hour

// PairCache maps (exchange, symbol) to a trading pair id so repeated cycles
// skip the upsert.
type PairCache struct {
	redis  redis.Cmdable
	ttl    time.Duration
	prefix string
	stats  *counters
	logger *slog.Logger
}

func NewPairCache(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *PairCache {
	if ttl <= 0 {
		ttl = DefaultPairTTL
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &PairCache{
		redis:  client,
		ttl:    ttl,
		prefix: "pair:",
		stats:  &counters{},
		logger: logger.With("component", "pair_cache"),
	}
}

func (c *PairCache) key(exchangeID int, symbol string) string {
	return c.prefix + strconv.Itoa(exchangeID) + ":" + symbol
}

func (c *PairCache) Get(ctx context.Context, exchangeID int, symbol string) (int, bool) {
	val, err := c.redis.Get(ctx, c.key(exchangeID, symbol)).Int()
	if errors.Is(err, redis.Nil) {
		c.stats.miss()
		return 0, false
	}
	if err != nil {
		c.logger.Debug("Pair cache lookup failed", "exchange_id", exchangeID, "symbol", symbol, "error", err.Error())
		c.stats.failure()
		c.stats.miss()
		return 0, false
	}
	c.stats.hit()
	return val, true
}

func (c *PairCache) Set(ctx context.Context, exchangeID int, symbol string, pairID int) error {
	if err := c.redis.Set(ctx, c.key(exchangeID, symbol), pairID, c.ttl).Err(); err != nil {
		c.stats.failure()
		return fmt.Errorf("failed to cache pair %s: %w", symbol, err)
	}
	c.stats.set()
	return nil
}

// Clear removes every cached pair id.
func (c *PairCache) Clear(ctx context.Context) error {
	var keys []string
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}
	c.logger.Info("Cleared pair cache", "entries", len(keys))
	return nil
}

func (c *PairCache) GetStats() CacheStats {
	return c.stats.snapshot()
}
