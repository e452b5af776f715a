package database

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/irfndi/funding-monitor-go/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	connectAttempts = 3
	pingTimeout     = 5 * time.Second
)

// RedisClient backs the snapshot and pair caches.
type RedisClient struct {
	Client *redis.Client
}

// NewRedisConnection dials Redis and pings it, retrying with exponential
// backoff so the service can start alongside a Redis container.
func NewRedisConnection(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := retryConnect(ctx, "redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"addr": rdb.Options().Addr,
		"db":   cfg.DB,
	}).Info("Successfully connected to Redis")

	return &RedisClient{Client: rdb}, nil
}

func (r *RedisClient) Close() {
	if r.Client == nil {
		return
	}
	if err := r.Client.Close(); err != nil {
		logrus.WithError(err).Warn("Error closing Redis connection")
		return
	}
	logrus.Info("Redis connection closed")
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// retryConnect runs ping up to connectAttempts times, each bounded by
// pingTimeout.
func retryConnect(ctx context.Context, target string, ping func(context.Context) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return struct{}{}, ping(pingCtx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(connectAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logrus.WithFields(logrus.Fields{
				"target":  target,
				"attempt": attempt,
				"retry":   next.String(),
			}).WithError(err).Warn("Connection attempt failed")
		}),
	)
	return err
}
