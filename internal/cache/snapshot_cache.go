package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/irfndi/funding-monitor-go/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	SnapshotKey        = "funding:latest"
	DefaultSnapshotTTL = 2 * time.Minute
)

// SnapshotEntry is the cached latest-rates view.
type SnapshotEntry struct {
	Rates    []models.FundingRateWithExchange `json:"rates"`
	CachedAt time.Time                        `json:"cached_at"`
}

// SnapshotCache keeps the most recent global snapshot in Redis so the API can
// serve it without hitting Postgres.
type SnapshotCache struct {
	redis  redis.Cmdable
	ttl    time.Duration
	key    string
	stats  *counters
	logger *slog.Logger
}

func NewSnapshotCache(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &SnapshotCache{
		redis:  client,
		ttl:    ttl,
		key:    SnapshotKey,
		stats:  &counters{},
		logger: logger.With("component", "snapshot_cache"),
	}
}

// Get returns the cached snapshot. Redis and decode errors count as misses.
func (c *SnapshotCache) Get(ctx context.Context) (*SnapshotEntry, bool) {
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.stats.miss()
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Redis error reading snapshot", "error", err.Error())
		c.stats.failure()
		c.stats.miss()
		return nil, false
	}

	var entry SnapshotEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("Discarding undecodable snapshot", "error", err.Error())
		c.stats.failure()
		c.stats.miss()
		return nil, false
	}

	c.stats.hit()
	return &entry, true
}

func (c *SnapshotCache) Set(ctx context.Context, rates []models.FundingRateWithExchange) error {
	entry := SnapshotEntry{Rates: rates, CachedAt: time.Now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.stats.failure()
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	c.stats.set()
	return nil
}

func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	return c.redis.Del(ctx, c.key).Err()
}

func (c *SnapshotCache) GetStats() CacheStats {
	return c.stats.snapshot()
}

func (c *SnapshotCache) LogStats() {
	stats := c.GetStats()
	c.logger.Info("Snapshot cache stats",
		"hits", stats.Hits,
		"misses", stats.Misses,
		"sets", stats.Sets,
		"errors", stats.Errors,
		"hit_rate", fmt.Sprintf("%.2f%%", stats.HitRate()),
	)
}
