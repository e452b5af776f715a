package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "funding_monitor", cfg.Database.DBName)
	assert.Equal(t, "60s", cfg.Collector.Interval)
	assert.Equal(t, 3, cfg.Collector.MaxRetries)
	assert.Equal(t, "10s", cfg.Collector.Timeout)
	assert.Equal(t, "1s", cfg.Collector.BaseDelay)
	assert.Equal(t, 0.002, cfg.Notifications.HotThreshold)
	assert.Equal(t, "2m", cfg.Cache.SnapshotTTL)
	assert.Zero(t, cfg.Retention.FundingRateHours, "history must be kept unless retention is configured")
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Empty(t, cfg.Logging.File)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "PRODUCTION")
	t.Setenv("COLLECTOR_INTERVAL", "30s")
	t.Setenv("COLLECTOR_MAX_RETRIES", "5")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("NOTIFICATIONS_HOT_THRESHOLD", "0.005")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "30s", cfg.Collector.Interval)
	assert.Equal(t, 5, cfg.Collector.MaxRetries)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, 0.005, cfg.Notifications.HotThreshold)
}

func TestLoad_RejectsInvalidInterval(t *testing.T) {
	t.Setenv("COLLECTOR_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid collector interval")
}

func validConfig() Config {
	return Config{
		Collector: CollectorConfig{
			Interval:            "60s",
			MaxRetries:          3,
			Timeout:             "10s",
			BaseDelay:           "1s",
			DetailRatePerSecond: 5,
		},
		Notifications: NotificationsConfig{
			HotThreshold:   0.002,
			DigestInterval: "1h",
			AlertCooldown:  "1h",
		},
		Cache:     CacheConfig{SnapshotTTL: "2m", PairTTL: "1h"},
		Retention: RetentionConfig{FundingRateHours: 720, Interval: "1h"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "interval too short", mutate: func(c *Config) { c.Collector.Interval = "500ms" }, wantErr: "at least 1s"},
		{name: "zero retries", mutate: func(c *Config) { c.Collector.MaxRetries = 0 }, wantErr: "max_retries"},
		{name: "bad timeout", mutate: func(c *Config) { c.Collector.Timeout = "x" }, wantErr: "collector timeout"},
		{name: "zero detail rate", mutate: func(c *Config) { c.Collector.DetailRatePerSecond = 0 }, wantErr: "detail_rate_per_second"},
		{name: "threshold too large", mutate: func(c *Config) { c.Notifications.HotThreshold = 1.5 }, wantErr: "hot_threshold"},
		{name: "negative retention", mutate: func(c *Config) { c.Retention.FundingRateHours = -1 }, wantErr: "funding_rate_hours"},
		{name: "bad cooldown", mutate: func(c *Config) { c.Notifications.AlertCooldown = "" }, wantErr: "alert_cooldown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, Duration("90s", time.Minute))
	assert.Equal(t, time.Minute, Duration("nope", time.Minute))
}
