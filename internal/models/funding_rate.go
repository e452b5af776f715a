package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundingRate is one immutable observation. Rows are append-only.
type FundingRate struct {
	ID              int64           `json:"id" db:"id"`
	ExchangeID      int             `json:"exchange_id" db:"exchange_id"`
	PairID          int             `json:"pair_id" db:"pair_id"`
	Symbol          string          `json:"symbol" db:"symbol"`
	FundingRate     decimal.Decimal `json:"funding_rate" db:"funding_rate"`
	NextFundingTime time.Time       `json:"next_funding_time" db:"next_funding_time"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// NewFundingRate is the insert shape produced by pair resolution.
type NewFundingRate struct {
	ExchangeID      int
	PairID          int
	Symbol          string
	FundingRate     decimal.Decimal
	NextFundingTime time.Time
	Timestamp       time.Time
}

// FundingRateWithExchange is a row of the latest-rates view.
type FundingRateWithExchange struct {
	FundingRate
	Exchange Exchange `json:"exchange"`
}

// IsHot reports whether the absolute rate exceeds threshold.
func (f FundingRate) IsHot(threshold decimal.Decimal) bool {
	return f.FundingRate.Abs().GreaterThan(threshold)
}

// FundingRateFilter narrows the generic funding-rate listing.
type FundingRateFilter struct {
	ExchangeIDs []int
	Symbols     []string
	MinRate     *decimal.Decimal
	MaxRate     *decimal.Decimal
	Limit       int
	Offset      int
}
