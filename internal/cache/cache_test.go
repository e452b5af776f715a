package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/irfndi/funding-monitor-go/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a test Redis instance using miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		s.Close()
	})

	return client, s
}

func sampleSnapshot() []models.FundingRateWithExchange {
	return []models.FundingRateWithExchange{
		{
			FundingRate: models.FundingRate{
				ID:          1,
				ExchangeID:  1,
				PairID:      7,
				Symbol:      "BTCUSDT",
				FundingRate: decimal.RequireFromString("0.0025"),
			},
			Exchange: models.Exchange{ID: 1, Name: "bybit", DisplayName: "Bybit", Color: "#f7931a"},
		},
	}
}

func TestSnapshotCache_SetThenGet(t *testing.T) {
	client, s := setupTestRedis(t)
	cache := NewSnapshotCache(client, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleSnapshot()))
	assert.True(t, s.Exists(SnapshotKey))
	assert.Equal(t, time.Minute, s.TTL(SnapshotKey))

	entry, ok := cache.Get(ctx)
	require.True(t, ok)
	require.Len(t, entry.Rates, 1)
	assert.Equal(t, "BTCUSDT", entry.Rates[0].Symbol)
	assert.Equal(t, "bybit", entry.Rates[0].Exchange.Name)
	assert.True(t, decimal.RequireFromString("0.0025").Equal(entry.Rates[0].FundingRate.FundingRate))

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestSnapshotCache_MissAndExpiry(t *testing.T) {
	client, s := setupTestRedis(t)
	cache := NewSnapshotCache(client, 0, nil)
	ctx := context.Background()

	_, ok := cache.Get(ctx)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, sampleSnapshot()))
	assert.Equal(t, DefaultSnapshotTTL, s.TTL(SnapshotKey))

	s.FastForward(DefaultSnapshotTTL + time.Second)
	_, ok = cache.Get(ctx)
	assert.False(t, ok)

	stats := cache.GetStats()
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, float64(0), stats.HitRate())
}

func TestSnapshotCache_CorruptEntryIsMiss(t *testing.T) {
	client, s := setupTestRedis(t)
	cache := NewSnapshotCache(client, time.Minute, nil)

	require.NoError(t, s.Set(SnapshotKey, "{not json"))
	_, ok := cache.Get(context.Background())
	assert.False(t, ok)
	assert.Equal(t, int64(1), cache.GetStats().Errors)
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	client, s := setupTestRedis(t)
	cache := NewSnapshotCache(client, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleSnapshot()))
	require.NoError(t, cache.Invalidate(ctx))
	assert.False(t, s.Exists(SnapshotKey))
}

func TestSnapshotCache_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	cache := NewSnapshotCache(client, time.Minute, nil)

	err := cache.Set(context.Background(), sampleSnapshot())
	require.Error(t, err)

	_, ok := cache.Get(context.Background())
	assert.False(t, ok)
	assert.Equal(t, int64(2), cache.GetStats().Errors)
}

func TestPairCache(t *testing.T) {
	client, s := setupTestRedis(t)
	cache := NewPairCache(client, 0, nil)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1, "BTCUSDT")
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, 1, "BTCUSDT", 42))
	assert.Equal(t, DefaultPairTTL, s.TTL("pair:1:BTCUSDT"))

	id, ok := cache.Get(ctx, 1, "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 42, id)

	_, ok = cache.Get(ctx, 2, "BTCUSDT")
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, 2, "ETHUSDT", 43))
	require.NoError(t, cache.Clear(ctx))
	assert.False(t, s.Exists("pair:1:BTCUSDT"))
	assert.False(t, s.Exists("pair:2:ETHUSDT"))

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(2), stats.Sets)
}

func TestPairCache_ClearEmpty(t *testing.T) {
	client, _ := setupTestRedis(t)
	assert.NoError(t, NewPairCache(client, time.Minute, nil).Clear(context.Background()))
}
