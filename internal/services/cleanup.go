package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const DefaultCleanupInterval = time.Hour

// RetentionStore removes and counts historical funding rows.
type RetentionStore interface {
	DeleteFundingRatesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountFundingRates(ctx context.Context) (int64, error)
}

// CleanupConfig defines cleanup configuration. A zero retention disables
// deletion.
type CleanupConfig struct {
	FundingRateRetention time.Duration
	Interval             time.Duration
}

// CleanupService handles automatic cleanup of old funding rates
type CleanupService struct {
	store  RetentionStore
	cfg    CleanupConfig
	logger *slog.Logger
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCleanupService(store RetentionStore, cfg CleanupConfig, logger *slog.Logger) *CleanupService {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCleanupInterval
	}
	return &CleanupService{
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "cleanup"),
		now:    time.Now,
	}
}

// Start runs one cleanup immediately and then every Interval until Stop.
func (c *CleanupService) Start(ctx context.Context) {
	if c.cfg.FundingRateRetention <= 0 {
		c.logger.Info("Funding rate retention disabled, cleanup not started")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Info("Starting cleanup service",
		"retention", c.cfg.FundingRateRetention.String(),
		"interval", c.cfg.Interval.String(),
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.RunCleanup(ctx); err != nil {
			c.logger.Error("Initial cleanup failed", "error", err.Error())
		}

		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.RunCleanup(ctx); err != nil {
					c.logger.Error("Cleanup failed", "error", err.Error())
				}
			}
		}
	}()
}

func (c *CleanupService) Stop() {
	if c.cancel != nil {
		c.logger.Info("Stopping cleanup service")
		c.cancel()
	}
	c.wg.Wait()
}

// RunCleanup deletes funding rates older than the retention window and
// returns how many rows went.
func (c *CleanupService) RunCleanup(ctx context.Context) (int64, error) {
	if c.cfg.FundingRateRetention <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.cfg.FundingRateRetention)

	deleted, err := c.store.DeleteFundingRatesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup funding rates: %w", err)
	}
	if deleted > 0 {
		c.logger.Info("Cleaned up old funding rate records",
			"deleted", deleted,
			"cutoff", cutoff.UTC().Format(time.RFC3339),
		)
	}
	return deleted, nil
}

// GetDataStats returns statistics about current data storage
func (c *CleanupService) GetDataStats(ctx context.Context) (map[string]int64, error) {
	count, err := c.store.CountFundingRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count funding rates: %w", err)
	}
	return map[string]int64{"funding_rates_count": count}, nil
}
