package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Collector     CollectorConfig     `mapstructure:"collector"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Retention     RetentionConfig     `mapstructure:"retention"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TelegramConfig struct {
	BotToken   string `mapstructure:"bot_token"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// CollectorConfig drives the per-exchange polling loops and the shared fetcher.
type CollectorConfig struct {
	Interval            string   `mapstructure:"interval"`
	MaxRetries          int      `mapstructure:"max_retries"`
	Timeout             string   `mapstructure:"timeout"`
	BaseDelay           string   `mapstructure:"base_delay"`
	DetailRatePerSecond float64  `mapstructure:"detail_rate_per_second"`
	Exchanges           []string `mapstructure:"exchanges"`
}

type NotificationsConfig struct {
	HotThreshold   float64 `mapstructure:"hot_threshold"`
	DigestInterval string  `mapstructure:"digest_interval"`
	AlertCooldown  string  `mapstructure:"alert_cooldown"`
}

type CacheConfig struct {
	SnapshotTTL string `mapstructure:"snapshot_ttl"`
	PairTTL     string `mapstructure:"pair_ttl"`
}

// RetentionConfig bounds how long funding rate history is kept. History is
// cumulative unless FundingRateHours is set above zero.
type RetentionConfig struct {
	FundingRateHours int    `mapstructure:"funding_rate_hours"`
	Interval         string `mapstructure:"interval"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Exporter       string `mapstructure:"exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// LoggingConfig enables an optional rotating file sink next to stdout.
type LoggingConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}
	if err := v.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values the collector and notifier cannot run without.
func (c *Config) Validate() error {
	interval, err := time.ParseDuration(c.Collector.Interval)
	if err != nil {
		return fmt.Errorf("invalid collector interval: %w", err)
	}
	if interval < time.Second {
		return fmt.Errorf("collector interval must be at least 1s, got %s", interval)
	}
	if c.Collector.MaxRetries < 1 {
		return fmt.Errorf("collector max_retries must be at least 1, got %d", c.Collector.MaxRetries)
	}
	for name, value := range map[string]string{
		"collector timeout":             c.Collector.Timeout,
		"collector base_delay":          c.Collector.BaseDelay,
		"notifications digest_interval": c.Notifications.DigestInterval,
		"notifications alert_cooldown":  c.Notifications.AlertCooldown,
		"cache snapshot_ttl":            c.Cache.SnapshotTTL,
		"cache pair_ttl":                c.Cache.PairTTL,
		"retention interval":            c.Retention.Interval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.Retention.FundingRateHours < 0 {
		return fmt.Errorf("retention funding_rate_hours must not be negative, got %d", c.Retention.FundingRateHours)
	}
	if c.Collector.DetailRatePerSecond <= 0 {
		return fmt.Errorf("collector detail_rate_per_second must be positive, got %v", c.Collector.DetailRatePerSecond)
	}
	if c.Notifications.HotThreshold <= 0 || c.Notifications.HotThreshold >= 1 {
		return fmt.Errorf("notifications hot_threshold must be between 0 and 1, got %v", c.Notifications.HotThreshold)
	}
	return nil
}

// Duration parses a duration field that Validate has already accepted.
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "funding_monitor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.webhook_url", "")

	v.SetDefault("collector.interval", "60s")
	v.SetDefault("collector.max_retries", 3)
	v.SetDefault("collector.timeout", "10s")
	v.SetDefault("collector.base_delay", "1s")
	v.SetDefault("collector.detail_rate_per_second", 5.0)
	v.SetDefault("collector.exchanges", []string{})

	v.SetDefault("notifications.hot_threshold", 0.002)
	v.SetDefault("notifications.digest_interval", "1h")
	v.SetDefault("notifications.alert_cooldown", "1h")

	v.SetDefault("cache.snapshot_ttl", "2m")
	v.SetDefault("cache.pair_ttl", "1h")

	v.SetDefault("retention.funding_rate_hours", 0)
	v.SetDefault("retention.interval", "1h")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "funding-monitor")
	v.SetDefault("telemetry.service_version", "1.0.0")

	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
}
