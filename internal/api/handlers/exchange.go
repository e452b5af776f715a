package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/funding-monitor-go/internal/models"
)

// ExchangeReader is the read side of storage used by ExchangeHandler.
type ExchangeReader interface {
	GetExchanges(ctx context.Context, activeOnly bool) ([]models.Exchange, error)
	GetExchangeStats(ctx context.Context) ([]models.ExchangeStats, error)
}

type ExchangeHandler struct {
	store ExchangeReader
}

func NewExchangeHandler(store ExchangeReader) *ExchangeHandler {
	return &ExchangeHandler{store: store}
}

// GetExchanges lists active exchanges.
func (h *ExchangeHandler) GetExchanges(c *gin.Context) {
	exchanges, err := h.store.GetExchanges(c.Request.Context(), true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch exchanges",
			"message": err.Error(),
		})
		return
	}
	if exchanges == nil {
		exchanges = []models.Exchange{}
	}
	c.JSON(http.StatusOK, exchanges)
}

// GetExchangeStats returns per-exchange observation counts and average rates.
func (h *ExchangeHandler) GetExchangeStats(c *gin.Context) {
	stats, err := h.store.GetExchangeStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch exchange stats",
			"message": err.Error(),
		})
		return
	}
	if stats == nil {
		stats = []models.ExchangeStats{}
	}
	c.JSON(http.StatusOK, stats)
}
