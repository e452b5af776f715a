package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/irfndi/funding-monitor-go/internal/models"
)

// WarmingSource is the persistence side read during warming.
type WarmingSource interface {
	GetLatestFundingRates(ctx context.Context) ([]models.FundingRateWithExchange, error)
	GetTradingPairs(ctx context.Context, exchangeID int) ([]models.TradingPair, error)
}

// SnapshotWriter stores the latest-rates view. *cache.SnapshotCache satisfies it.
type SnapshotWriter interface {
	Set(ctx context.Context, rates []models.FundingRateWithExchange) error
	Invalidate(ctx context.Context) error
}

// CacheWarmingService handles cache warming on application startup.
type CacheWarmingService struct {
	source    WarmingSource
	snapshots SnapshotWriter
	pairs     PairCache
	logger    *slog.Logger
}

// NewCacheWarmingService creates a new cache warming service. Either cache
// may be nil, in which case that step is skipped.
func NewCacheWarmingService(source WarmingSource, snapshots SnapshotWriter, pairs PairCache, logger *slog.Logger) *CacheWarmingService {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &CacheWarmingService{
		source:    source,
		snapshots: snapshots,
		pairs:     pairs,
		logger:    logger.With("component", "cache_warming"),
	}
}

// WarmCache fills the snapshot and pair caches from storage. Each step runs
// even if the other fails; the returned error joins both failures.
func (c *CacheWarmingService) WarmCache(ctx context.Context) error {
	c.logger.Info("Starting cache warming")
	start := time.Now()

	var errs []error
	if err := c.warmSnapshot(ctx); err != nil {
		c.logger.Warn("Failed to warm funding rate snapshot", "error", err.Error())
		errs = append(errs, err)
	}
	if err := c.warmTradingPairs(ctx); err != nil {
		c.logger.Warn("Failed to warm trading pairs cache", "error", err.Error())
		errs = append(errs, err)
	}

	c.logger.Info("Cache warming completed", "duration_ms", time.Since(start).Milliseconds())
	return errors.Join(errs...)
}

func (c *CacheWarmingService) warmSnapshot(ctx context.Context) error {
	if c.snapshots == nil {
		return nil
	}
	rates, err := c.source.GetLatestFundingRates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load latest funding rates: %w", err)
	}
	if len(rates) == 0 {
		// a snapshot left over from a previous run would outlive its rows
		return c.snapshots.Invalidate(ctx)
	}
	if err := c.snapshots.Set(ctx, rates); err != nil {
		return fmt.Errorf("failed to cache funding rate snapshot: %w", err)
	}
	c.logger.Info("Funding rate snapshot warmed", "rates", len(rates))
	return nil
}

func (c *CacheWarmingService) warmTradingPairs(ctx context.Context) error {
	if c.pairs == nil {
		return nil
	}
	pairs, err := c.source.GetTradingPairs(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load trading pairs: %w", err)
	}

	cached := 0
	for _, p := range pairs {
		if err := c.pairs.Set(ctx, p.ExchangeID, p.Symbol, p.ID); err != nil {
			return fmt.Errorf("failed to cache trading pair %s: %w", p.Symbol, err)
		}
		cached++
	}
	c.logger.Info("Trading pairs cache warmed", "pairs", cached)
	return nil
}
