package database

import (
	"context"
	"fmt"

	"github.com/irfndi/funding-monitor-go/internal/models"
)

// GetActiveCustomAlerts returns every active alert whose owner has a Telegram chat.
func (s *PostgresStorage) GetActiveCustomAlerts(ctx context.Context) ([]models.CustomAlert, error) {
	query := `
		SELECT ca.id, ca.user_id, u.telegram_chat_id, ca.exchange_id, ca.symbol,
			ca.condition, ca.threshold, ca.is_active, ca.created_at
		FROM custom_alerts ca
		JOIN users u ON u.id = ca.user_id
		WHERE ca.is_active = true
			AND u.telegram_chat_id IS NOT NULL AND u.telegram_chat_id <> ''
		ORDER BY ca.id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.CustomAlert, 0)
	for rows.Next() {
		var (
			a         models.CustomAlert
			condition string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.TelegramChatID, &a.ExchangeID, &a.Symbol,
			&condition, &a.Threshold, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan custom alert: %w", err)
		}
		a.Condition = models.AlertCondition(condition)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetAlertSubscribers returns users with Telegram delivery enabled.
func (s *PostgresStorage) GetAlertSubscribers(ctx context.Context) ([]models.AlertSubscriber, error) {
	query := `
		SELECT u.id, u.telegram_chat_id, ns.threshold_percent
		FROM users u
		JOIN notification_settings ns ON ns.user_id = u.id
		WHERE ns.telegram_enabled = true
			AND u.telegram_chat_id IS NOT NULL AND u.telegram_chat_id <> ''
		ORDER BY u.id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]models.AlertSubscriber, 0)
	for rows.Next() {
		var sub models.AlertSubscriber
		if err := rows.Scan(&sub.UserID, &sub.TelegramChatID, &sub.Threshold); err != nil {
			return nil, fmt.Errorf("failed to scan alert subscriber: %w", err)
		}
		subscribers = append(subscribers, sub)
	}
	return subscribers, rows.Err()
}

// SetTelegramSubscription registers a chat as its own user and toggles
// digest delivery for it.
func (s *PostgresStorage) SetTelegramSubscription(ctx context.Context, chatID string, enabled bool) error {
	userID := "telegram:" + chatID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin telegram subscription: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO users (id, telegram_chat_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET telegram_chat_id = EXCLUDED.telegram_chat_id, updated_at = NOW()`,
		userID, chatID); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to upsert telegram user: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO notification_settings (user_id, telegram_enabled)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET telegram_enabled = EXCLUDED.telegram_enabled, updated_at = NOW()`,
		userID, enabled); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to upsert notification settings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit telegram subscription: %w", err)
	}
	return nil
}
