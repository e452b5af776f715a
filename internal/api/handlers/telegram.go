package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"
)

// UpdateProcessor handles one Telegram update. *services.TelegramCommands satisfies it.
type UpdateProcessor interface {
	HandleUpdate(ctx context.Context, update *models.Update) error
}

// TelegramHandler handles Telegram webhook requests
type TelegramHandler struct {
	commands UpdateProcessor
	logger   *slog.Logger
}

func NewTelegramHandler(commands UpdateProcessor, logger *slog.Logger) *TelegramHandler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &TelegramHandler{commands: commands, logger: logger.With("component", "telegram_webhook")}
}

// HandleWebhook processes the update before answering so Telegram retries
// on failure.
func (h *TelegramHandler) HandleWebhook(c *gin.Context) {
	if h.commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Telegram bot not available"})
		return
	}

	var update models.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Warn("Failed to parse Telegram update", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.commands.HandleUpdate(c.Request.Context(), &update); err != nil {
		h.logger.Error("Failed to process Telegram update", "update_id", update.ID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to handle telegram webhook"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
