// Package server wires configuration, storage, the collector pipeline and the
// HTTP surface into one running process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/funding-monitor-go/internal/api"
	"github.com/irfndi/funding-monitor-go/internal/cache"
	"github.com/irfndi/funding-monitor-go/internal/config"
	"github.com/irfndi/funding-monitor-go/internal/database"
	"github.com/irfndi/funding-monitor-go/internal/exchange"
	"github.com/irfndi/funding-monitor-go/internal/fetcher"
	"github.com/irfndi/funding-monitor-go/internal/logging"
	"github.com/irfndi/funding-monitor-go/internal/middleware"
	"github.com/irfndi/funding-monitor-go/internal/services"
	"github.com/irfndi/funding-monitor-go/internal/telemetry"
	"github.com/irfndi/funding-monitor-go/internal/websocket"
)

const shutdownTimeout = 30 * time.Second

// Run starts every component and blocks until ctx is cancelled, then shuts
// down in reverse order.
func Run(ctx context.Context, cfg *config.Config) error {
	stdLogger, shutdownLogs, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownLogs(flushCtx)
		_ = stdLogger.Close()
	}()
	logger := stdLogger.WithService(serviceName(cfg))
	component := func(name string) *slog.Logger {
		return stdLogger.WithComponent(name).With("service", serviceName(cfg))
	}
	logging.ConfigureLogrus(cfg.LogLevel)

	provider, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			logger.Warn("Failed to shutdown telemetry", "error", err.Error())
		}
	}()

	db, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	pool := database.NewTracedDB(db.Pool)
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	storage := database.NewPostgresStorage(pool)

	redisClient, err := database.NewRedisConnection(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	snapshots := cache.NewSnapshotCache(redisClient.Client, config.Duration(cfg.Cache.SnapshotTTL, cache.DefaultSnapshotTTL), logger)
	pairCache := cache.NewPairCache(redisClient.Client, config.Duration(cfg.Cache.PairTTL, time.Hour), logger)

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	notifier, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, logger)
	if err != nil {
		return err
	}
	if err := notifier.SetWebhook(ctx, cfg.Telegram.WebhookURL); err != nil {
		logger.Warn("Telegram webhook registration failed", "error", err.Error())
	}
	commands := services.NewTelegramCommands(notifier, storage, logger)
	notifications := services.NewNotificationService(storage, notifier, notificationConfig(cfg), component("notifications"))

	broadcaster := websocket.NewBroadcaster(cfg.Server.AllowedOrigins, component("websocket"))
	publisher := services.NewPublisher(logger)
	publisher.Subscribe("snapshot_cache", func(ctx context.Context, event services.UpdateEvent) {
		if err := snapshots.Set(ctx, event.Data); err != nil {
			logger.Warn("Failed to refresh snapshot cache", "error", err.Error())
		}
	})
	publisher.Subscribe("websocket", broadcaster.HandleUpdate)
	publisher.Subscribe("notifications", notifications.HandleUpdate)
	publisher.Subscribe("audit", func(_ context.Context, event services.UpdateEvent) {
		stdLogger.LogBusinessEvent("funding_snapshot_published", map[string]interface{}{
			"rates":     len(event.Data),
			"timestamp": event.Timestamp,
		})
	})

	resolver := services.NewPairResolver(storage, pairCache, component("pair_resolver"))
	collector := services.NewCollectorService(registry, storage, resolver, publisher, collectorConfig(cfg), component("collector"))

	warmer := services.NewCacheWarmingService(storage, snapshots, pairCache, logger)
	if err := warmer.WarmCache(ctx); err != nil {
		logger.Warn("Cache warming failed", "error", err.Error())
	}

	notifications.Start(ctx)
	defer notifications.Stop()

	if err := collector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start collector: %w", err)
	}
	defer collector.Stop()

	cleanup := services.NewCleanupService(storage, cleanupConfig(cfg), component("cleanup"))
	cleanup.Start(ctx)
	defer cleanup.Stop()

	router := NewRouter(cfg, api.Dependencies{
		Storage:   storage,
		Snapshots: snapshots,
		DB:        db,
		Redis:     redisClient,
		Collector: collector,
		Telegram:  commands,
		WebSocket: broadcaster.Handler(),
		Version:   cfg.Telemetry.ServiceVersion,
		Logger:    logger,
	}, logger)

	srv := newHTTPServer(cfg.Server.Port, router)
	serveErr := make(chan error, 1)
	go func() {
		stdLogger.LogStartup(serviceName(cfg), cfg.Telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		stdLogger.LogShutdown(serviceName(cfg), "signal received")
		snapshots.LogStats()
		pairStats := pairCache.GetStats()
		logger.Info("Pair cache stats", "hits", pairStats.Hits, "misses", pairStats.Misses, "hit_rate", pairStats.HitRate())
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	broadcaster.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exited gracefully")
	return nil
}

// NewRouter builds the gin engine with the shared middleware stack.
func NewRouter(cfg *config.Config, deps api.Dependencies, logger *slog.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = logging.NewDiscardLogger().Logger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName(cfg)))
	router.Use(middleware.RequestLogger(logger, "/health", "/health/live"))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	api.SetupRoutes(router, deps)
	return router
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func newLogger(cfg *config.Config) (*logging.StandardLogger, func(context.Context) error, error) {
	if cfg.Telemetry.Enabled && cfg.Telemetry.Exporter == telemetry.ExporterOTLP {
		return logging.NewOTLPLogger(logging.OTLPConfig{
			Enabled:        true,
			Endpoint:       cfg.Telemetry.OTLPEndpoint,
			ServiceName:    serviceName(cfg),
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Environment,
			LogLevel:       cfg.LogLevel,
		})
	}
	logger := logging.NewRotatingLogger(cfg.LogLevel, cfg.Environment, logging.RotationConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	return logger, func(context.Context) error { return nil }, nil
}

func buildRegistry(cfg *config.Config, logger *slog.Logger) (*exchange.Registry, error) {
	client := fetcher.New(fetcherConfig(cfg), logger)
	all, err := exchange.NewRegistry(exchange.DefaultAdapters(client, logger,
		exchange.WithDetailRate(cfg.Collector.DetailRatePerSecond))...)
	if err != nil {
		return nil, fmt.Errorf("failed to build exchange registry: %w", err)
	}
	enabled, err := all.Enabled(cfg.Collector.Exchanges)
	if err != nil {
		return nil, fmt.Errorf("invalid collector exchanges: %w", err)
	}
	return enabled, nil
}

func serviceName(cfg *config.Config) string {
	if cfg.Telemetry.ServiceName != "" {
		return cfg.Telemetry.ServiceName
	}
	return telemetry.ServiceName
}

func telemetryConfig(cfg *config.Config) telemetry.TelemetryConfig {
	return telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Exporter:       cfg.Telemetry.Exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    serviceName(cfg),
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
	}
}

func fetcherConfig(cfg *config.Config) fetcher.Config {
	return fetcher.Config{
		MaxRetries: cfg.Collector.MaxRetries,
		Timeout:    config.Duration(cfg.Collector.Timeout, fetcher.DefaultTimeout),
		BaseDelay:  config.Duration(cfg.Collector.BaseDelay, fetcher.DefaultBaseDelay),
	}
}

func collectorConfig(cfg *config.Config) services.CollectorConfig {
	return services.CollectorConfig{
		Interval: config.Duration(cfg.Collector.Interval, services.DefaultCollectionInterval),
	}
}

func notificationConfig(cfg *config.Config) services.NotificationConfig {
	return services.NotificationConfig{
		HotThreshold:   decimal.NewFromFloat(cfg.Notifications.HotThreshold),
		DigestInterval: config.Duration(cfg.Notifications.DigestInterval, services.DefaultDigestInterval),
		AlertCooldown:  config.Duration(cfg.Notifications.AlertCooldown, services.DefaultAlertCooldown),
	}
}

// cleanupConfig maps funding_rate_hours of 0 to a disabled cleanup.
func cleanupConfig(cfg *config.Config) services.CleanupConfig {
	return services.CleanupConfig{
		FundingRateRetention: time.Duration(cfg.Retention.FundingRateHours) * time.Hour,
		Interval:             config.Duration(cfg.Retention.Interval, services.DefaultCleanupInterval),
	}
}
