package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/irfndi/funding-monitor-go/internal/cache"
	"github.com/irfndi/funding-monitor-go/internal/models"
	"github.com/irfndi/funding-monitor-go/internal/utils"
)

const (
	defaultListLimit = 25
	maxListLimit     = 1000
	maxHistoryHours  = 720
)

// FundingRateReader is the read side of storage used by FundingHandler.
type FundingRateReader interface {
	GetFundingRates(ctx context.Context, filter models.FundingRateFilter) ([]models.FundingRateWithExchange, error)
	GetLatestFundingRates(ctx context.Context) ([]models.FundingRateWithExchange, error)
	GetHotFundingRates(ctx context.Context, threshold decimal.Decimal) ([]models.FundingRateWithExchange, error)
	GetFundingRateHistory(ctx context.Context, symbol string, exchangeID int, hours int) ([]models.FundingRate, error)
}

// SnapshotCache is satisfied by *cache.SnapshotCache.
type SnapshotCache interface {
	Get(ctx context.Context) (*cache.SnapshotEntry, bool)
	Set(ctx context.Context, rates []models.FundingRateWithExchange) error
}

type FundingHandler struct {
	store     FundingRateReader
	snapshots SnapshotCache
	logger    *slog.Logger
}

// NewFundingHandler serves latest rates from snapshots when non-nil.
func NewFundingHandler(store FundingRateReader, snapshots SnapshotCache, logger *slog.Logger) *FundingHandler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &FundingHandler{
		store:     store,
		snapshots: snapshots,
		logger:    logger.With("component", "funding_handler"),
	}
}

// GetFundingRates lists stored rates, newest first.
// Query: exchangeIds (or exchanges), symbols, minRate, maxRate, limit, offset.
func (h *FundingHandler) GetFundingRates(c *gin.Context) {
	filter, err := parseFundingFilter(c)
	if err != nil {
		resp := gin.H{"error": "Invalid query parameters", "message": err.Error()}
		var v *utils.ValidationError
		if errors.As(err, &v) {
			resp["field"] = v.Field
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	rates, err := h.store.GetFundingRates(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch funding rates",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, nonNilRates(rates))
}

// GetLatestFundingRates returns the latest rate per pair, from cache when possible.
func (h *FundingHandler) GetLatestFundingRates(c *gin.Context) {
	ctx := c.Request.Context()

	if h.snapshots != nil {
		if entry, ok := h.snapshots.Get(ctx); ok {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, nonNilRates(entry.Rates))
			return
		}
	}

	rates, err := h.store.GetLatestFundingRates(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch latest funding rates",
			"message": err.Error(),
		})
		return
	}

	if h.snapshots != nil && len(rates) > 0 {
		if err := h.snapshots.Set(ctx, rates); err != nil {
			h.logger.Warn("Failed to cache latest funding rates", "error", err.Error())
		}
	}
	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, nonNilRates(rates))
}

// GetHotFundingRates returns latest rates whose magnitude exceeds :threshold.
func (h *FundingHandler) GetHotFundingRates(c *gin.Context) {
	threshold, err := decimal.NewFromString(c.Param("threshold"))
	if err != nil || threshold.IsNegative() || threshold.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid threshold",
			"message": "threshold must be a decimal in [0, 1)",
		})
		return
	}

	rates, err := h.store.GetHotFundingRates(c.Request.Context(), threshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch hot funding rates",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, nonNilRates(rates))
}

// GetFundingRateHistory returns one pair's observations for the last :hours.
func (h *FundingHandler) GetFundingRateHistory(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	exchangeID, idErr := strconv.Atoi(c.Param("exchangeId"))
	hours, hoursErr := strconv.Atoi(c.Param("hours"))

	switch {
	case symbol == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid symbol"})
		return
	case idErr != nil || exchangeID <= 0:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid exchange ID"})
		return
	case hoursErr != nil || hours < 1 || hours > maxHistoryHours:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid hours",
			"message": fmt.Sprintf("hours must be between 1 and %d", maxHistoryHours),
		})
		return
	}

	history, err := h.store.GetFundingRateHistory(c.Request.Context(), symbol, exchangeID, hours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch funding rate history",
			"message": err.Error(),
		})
		return
	}
	if history == nil {
		history = []models.FundingRate{}
	}
	c.JSON(http.StatusOK, history)
}

func parseFundingFilter(c *gin.Context) (models.FundingRateFilter, error) {
	filter := models.FundingRateFilter{Limit: defaultListLimit}

	ids := c.Query("exchangeIds")
	if ids == "" {
		ids = c.Query("exchanges")
	}
	for _, raw := range splitList(ids) {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return filter, utils.NewValidationErrorf("exchangeIds", "invalid exchange id %q", raw)
		}
		filter.ExchangeIDs = append(filter.ExchangeIDs, id)
	}

	for _, s := range splitList(c.Query("symbols")) {
		filter.Symbols = append(filter.Symbols, strings.ToUpper(s))
	}

	var err error
	if filter.MinRate, err = optionalDecimal(c.Query("minRate")); err != nil {
		return filter, utils.NewValidationError("minRate", "must be a decimal")
	}
	if filter.MaxRate, err = optionalDecimal(c.Query("maxRate")); err != nil {
		return filter, utils.NewValidationError("maxRate", "must be a decimal")
	}
	if filter.MinRate != nil && filter.MaxRate != nil && filter.MinRate.GreaterThan(*filter.MaxRate) {
		return filter, utils.NewValidationError("minRate", "must not exceed maxRate")
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return filter, utils.NewValidationErrorf("limit", "must be between 1 and %d", maxListLimit)
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, utils.NewValidationError("offset", "must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nonNilRates(rates []models.FundingRateWithExchange) []models.FundingRateWithExchange {
	if rates == nil {
		return []models.FundingRateWithExchange{}
	}
	return rates
}
