package models

import "time"

// TradingPair is unique on (Symbol, ExchangeID). Rows are created lazily the
// first time a symbol appears in an exchange feed and are never deleted.
type TradingPair struct {
	ID         int       `json:"id" db:"id"`
	Symbol     string    `json:"symbol" db:"symbol"`
	BaseAsset  string    `json:"base_asset" db:"base_asset"`
	QuoteAsset string    `json:"quote_asset" db:"quote_asset"`
	ExchangeID int       `json:"exchange_id" db:"exchange_id"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NewTradingPair is the upsert shape for TradingPair.
type NewTradingPair struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	ExchangeID int
}
