package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange represents a perpetual-futures venue polled by the collector.
// Name is unique and matches the adapter name.
type Exchange struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	APIURL      string    `json:"api_url" db:"api_url"`
	WSURL       *string   `json:"ws_url,omitempty" db:"ws_url"`
	Color       string    `json:"color" db:"color"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewExchange is the upsert shape for Exchange.
type NewExchange struct {
	Name        string
	DisplayName string
	APIURL      string
	WSURL       *string
	Color       string
	IsActive    bool
}

// ExchangeStats aggregates one exchange's stored observations.
type ExchangeStats struct {
	ExchangeID  int             `json:"exchange_id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Count       int             `json:"count"`
	AvgRate     decimal.Decimal `json:"avg_rate"`
}
