package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/funding-monitor-go/internal/api/handlers"
)

// Storage is the read side of the funding-rate store the API serves.
type Storage interface {
	handlers.ExchangeReader
	handlers.FundingRateReader
}

// Dependencies carries everything the routes need. Only Storage is required.
type Dependencies struct {
	Storage   Storage
	Snapshots handlers.SnapshotCache
	DB        handlers.HealthChecker
	Redis     handlers.HealthChecker
	Collector handlers.CollectorStatus
	Telegram  handlers.UpdateProcessor
	WebSocket http.Handler
	Version   string
	Logger    *slog.Logger
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis, deps.Collector, deps.Version)
	exchangeHandler := handlers.NewExchangeHandler(deps.Storage)
	fundingHandler := handlers.NewFundingHandler(deps.Storage, deps.Snapshots, deps.Logger)
	telegramHandler := handlers.NewTelegramHandler(deps.Telegram, deps.Logger)

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/health/live", healthHandler.LivenessCheck)

	if deps.WebSocket != nil {
		router.GET("/ws", gin.WrapH(deps.WebSocket))
	}

	api := router.Group("/api")
	{
		exchanges := api.Group("/exchanges")
		{
			exchanges.GET("", exchangeHandler.GetExchanges)
			exchanges.GET("/stats", exchangeHandler.GetExchangeStats)
		}

		funding := api.Group("/funding-rates")
		{
			funding.GET("", fundingHandler.GetFundingRates)
			funding.GET("/latest", fundingHandler.GetLatestFundingRates)
			funding.GET("/hot/:threshold", fundingHandler.GetHotFundingRates)
			funding.GET("/history/:symbol/:exchangeId/:hours", fundingHandler.GetFundingRateHistory)
		}

		telegram := api.Group("/telegram")
		{
			telegram.POST("/webhook", telegramHandler.HandleWebhook)
		}
	}
}
