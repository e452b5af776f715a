package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// schemaStatements is applied in order by Migrate. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS exchanges (
		id SERIAL PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE,
		display_name VARCHAR(100) NOT NULL,
		api_url VARCHAR(255) NOT NULL,
		ws_url VARCHAR(255),
		is_active BOOLEAN NOT NULL DEFAULT true,
		color VARCHAR(7) NOT NULL DEFAULT '#3B82F6',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trading_pairs (
		id SERIAL PRIMARY KEY,
		symbol VARCHAR(40) NOT NULL,
		base_asset VARCHAR(30) NOT NULL,
		quote_asset VARCHAR(10) NOT NULL,
		exchange_id INTEGER NOT NULL REFERENCES exchanges(id),
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (symbol, exchange_id)
	)`,
	`CREATE TABLE IF NOT EXISTS funding_rates (
		id BIGSERIAL PRIMARY KEY,
		exchange_id INTEGER NOT NULL REFERENCES exchanges(id),
		pair_id INTEGER NOT NULL REFERENCES trading_pairs(id),
		symbol VARCHAR(40) NOT NULL,
		funding_rate NUMERIC(12, 8) NOT NULL,
		next_funding_time TIMESTAMPTZ NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_funding_rates_exchange_symbol_ts
		ON funding_rates (exchange_id, symbol, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_funding_rates_timestamp ON funding_rates (timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		email VARCHAR(255) UNIQUE,
		telegram_chat_id VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notification_settings (
		id SERIAL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL UNIQUE REFERENCES users(id),
		threshold_percent NUMERIC(5, 3) NOT NULL DEFAULT 0.200,
		frequency_minutes INTEGER NOT NULL DEFAULT 60,
		telegram_enabled BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS custom_alerts (
		id SERIAL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL REFERENCES users(id),
		exchange_id INTEGER REFERENCES exchanges(id),
		symbol VARCHAR(40),
		condition VARCHAR(10) NOT NULL CHECK (condition IN ('gt', 'lt', 'gte', 'lte')),
		threshold NUMERIC(12, 8) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, pool DatabasePool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	logrus.WithField("statements", len(schemaStatements)).Info("Database schema is up to date")
	return nil
}
