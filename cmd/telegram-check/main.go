// Command telegram-check verifies the Telegram bot configuration and can
// register the webhook the API serves.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-telegram/bot"

	"github.com/irfndi/funding-monitor-go/internal/config"
	"github.com/irfndi/funding-monitor-go/internal/services"
)

func main() {
	register := flag.Bool("register", false, "register telegram.webhook_url with Telegram")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := check(ctx, os.Stdout, cfg.Telegram, *register); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func check(ctx context.Context, out io.Writer, tg config.TelegramConfig, register bool, opts ...bot.Option) error {
	if tg.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not configured")
	}
	fmt.Fprintf(out, "✅ TELEGRAM_BOT_TOKEN is configured (length: %d)\n", len(tg.BotToken))

	b, err := bot.New(tg.BotToken, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	fmt.Fprintf(out, "✅ Bot API reachable: @%s (id %d)\n", me.Username, me.ID)

	if register {
		if tg.WebhookURL == "" {
			return errors.New("-register needs TELEGRAM_WEBHOOK_URL")
		}
		notifier, err := services.NewTelegramNotifier(tg.BotToken, nil, opts...)
		if err != nil {
			return err
		}
		if err := notifier.SetWebhook(ctx, tg.WebhookURL); err != nil {
			return err
		}
		fmt.Fprintf(out, "✅ Webhook registered for %s\n", tg.WebhookURL)
	}

	info, err := b.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get webhook info: %w", err)
	}
	if info.URL == "" {
		fmt.Fprintln(out, "⚠️  No webhook registered; updates will not reach /api/telegram/webhook")
		return nil
	}
	fmt.Fprintf(out, "✅ Webhook: %s (pending updates: %d)\n", info.URL, info.PendingUpdateCount)
	if info.LastErrorMessage != "" {
		fmt.Fprintf(out, "⚠️  Last delivery error: %s\n", info.LastErrorMessage)
	}
	return nil
}
