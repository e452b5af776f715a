package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// ErrNotifierDisabled is returned by commands that need a bot when none is configured.
var ErrNotifierDisabled = errors.New("telegram bot not initialized")

// Notifier delivers a Markdown message to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID string, text string) error
	Enabled() bool
}

// TelegramNotifier sends through the Bot API. Without a token it only logs.
type TelegramNotifier struct {
	bot    *bot.Bot
	logger *slog.Logger
}

// NewTelegramNotifier returns a disabled notifier when token is empty.
func NewTelegramNotifier(token string, logger *slog.Logger, opts ...bot.Option) (*TelegramNotifier, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	n := &TelegramNotifier{logger: logger.With("component", "telegram")}
	if strings.TrimSpace(token) == "" {
		n.logger.Warn("Telegram bot token not configured, notifications will be logged only")
		return n, nil
	}

	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	n.bot = b
	return n, nil
}

func (n *TelegramNotifier) Enabled() bool {
	return n.bot != nil
}

func (n *TelegramNotifier) Send(ctx context.Context, chatID string, text string) error {
	if n.bot == nil {
		n.logger.Info("Telegram disabled, notification not sent", "chat_id", chatID, "message", text)
		return nil
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	_, err = n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    id,
		Text:      text,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// WebhookPath is where the API accepts Telegram updates.
const WebhookPath = "/api/telegram/webhook"

// SetWebhook points Telegram at baseURL + WebhookPath. It is a no-op when
// the notifier is disabled or baseURL is empty.
func (n *TelegramNotifier) SetWebhook(ctx context.Context, baseURL string) error {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if n.bot == nil || baseURL == "" {
		return nil
	}

	url := baseURL + WebhookPath
	ok, err := n.bot.SetWebhook(ctx, &bot.SetWebhookParams{URL: url})
	if err != nil {
		return fmt.Errorf("failed to set telegram webhook: %w", err)
	}
	if !ok {
		return fmt.Errorf("telegram rejected webhook %s", url)
	}
	n.logger.Info("Telegram webhook registered", "url", url)
	return nil
}

// SubscriptionStore toggles Telegram delivery for a chat.
type SubscriptionStore interface {
	SetTelegramSubscription(ctx context.Context, chatID string, enabled bool) error
}

// TelegramCommands answers webhook updates.
type TelegramCommands struct {
	notifier Notifier
	store    SubscriptionStore
	logger   *slog.Logger
}

func NewTelegramCommands(notifier Notifier, store SubscriptionStore, logger *slog.Logger) *TelegramCommands {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &TelegramCommands{
		notifier: notifier,
		store:    store,
		logger:   logger.With("component", "telegram_commands"),
	}
}

// HandleUpdate processes one update. Non-command messages are ignored.
func (t *TelegramCommands) HandleUpdate(ctx context.Context, update *tgmodels.Update) error {
	if update == nil || update.Message == nil {
		return nil
	}
	msg := update.Message
	if msg.Chat.ID == 0 {
		return errors.New("invalid message: missing chat")
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	text := strings.TrimSpace(msg.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		if t.store != nil {
			if err := t.store.SetTelegramSubscription(ctx, chatID, true); err != nil {
				t.logger.Error("Failed to subscribe chat", "chat_id", chatID, "error", err.Error())
			}
		}
		return t.notifier.Send(ctx, chatID, startMessage(chatID))
	case strings.HasPrefix(text, "/stop"):
		if t.store != nil {
			if err := t.store.SetTelegramSubscription(ctx, chatID, false); err != nil {
				return fmt.Errorf("failed to unsubscribe chat %s: %w", chatID, err)
			}
		}
		return t.notifier.Send(ctx, chatID, "🔕 Funding alerts paused. Send /start to resume.")
	case strings.HasPrefix(text, "/help"):
		return t.notifier.Send(ctx, chatID, helpMessage)
	default:
		return nil
	}
}

func startMessage(chatID string) string {
	return "👋 *Funding Monitor*\n\n" +
		fmt.Sprintf("Your Chat ID: `%s`\n\n", chatID) +
		"You will receive the hourly digest of hot funding rates.\n" +
		"Use this Chat ID when creating custom alerts."
}

const helpMessage = "*Commands*\n" +
	"/start - subscribe and show your Chat ID\n" +
	"/stop - pause alerts\n" +
	"/help - show this message"
