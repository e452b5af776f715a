package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/irfndi/funding-monitor-go/internal/exchange"
	"github.com/irfndi/funding-monitor-go/internal/models"
)

// PairStore creates trading pairs atomically on (symbol, exchange_id).
type PairStore interface {
	UpsertTradingPair(ctx context.Context, pair models.NewTradingPair) (models.TradingPair, error)
}

// PairCache is an optional pair-id lookaside. *cache.PairCache satisfies it.
type PairCache interface {
	Get(ctx context.Context, exchangeID int, symbol string) (int, bool)
	Set(ctx context.Context, exchangeID int, symbol string, pairID int) error
}

// ParseSymbol splits a canonical symbol into base and quote by stripping the
// USDT, BUSD and USD substrings, longest first so BUSD is not left as a B.
// Quote is USDT when present, otherwise USD. Bases that themselves contain
// "USD" resolve incorrectly.
func ParseSymbol(symbol string) (string, string) {
	base := strings.ReplaceAll(symbol, "USDT", "")
	base = strings.ReplaceAll(base, "BUSD", "")
	base = strings.ReplaceAll(base, "USD", "")

	quote := "USD"
	if strings.Contains(symbol, "USDT") {
		quote = "USDT"
	}
	return base, quote
}

// PairResolver turns normalized records into insertable funding rates,
// creating trading pairs on first sight.
type PairResolver struct {
	store  PairStore
	cache  PairCache
	logger *slog.Logger
}

// NewPairResolver builds a resolver. cache may be nil.
func NewPairResolver(store PairStore, cache PairCache, logger *slog.Logger) *PairResolver {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &PairResolver{
		store:  store,
		cache:  cache,
		logger: logger.With("component", "pair_resolver"),
	}
}

// Resolve validates the rate, finds or creates the trading pair and returns
// the row to insert. Resolving the same symbol twice yields the same pair id.
func (r *PairResolver) Resolve(ctx context.Context, rec exchange.NormalizedRecord, exchangeID int) (models.NewFundingRate, error) {
	rate, err := exchange.ParseRate(rec.FundingRate)
	if err != nil {
		return models.NewFundingRate{}, &exchange.ParseError{Symbol: rec.Symbol, Field: "funding_rate", Err: err}
	}

	base, quote := ParseSymbol(rec.Symbol)
	if base == "" {
		return models.NewFundingRate{}, &exchange.ParseError{Symbol: rec.Symbol, Field: "symbol", Err: exchange.ErrMissingField}
	}

	pairID, err := r.pairID(ctx, exchangeID, rec.Symbol, base, quote)
	if err != nil {
		return models.NewFundingRate{}, err
	}

	return models.NewFundingRate{
		ExchangeID:      exchangeID,
		PairID:          pairID,
		Symbol:          rec.Symbol,
		FundingRate:     rate,
		NextFundingTime: rec.NextFundingTime,
		Timestamp:       rec.ObservedAt,
	}, nil
}

func (r *PairResolver) pairID(ctx context.Context, exchangeID int, symbol, base, quote string) (int, error) {
	if r.cache != nil {
		if id, ok := r.cache.Get(ctx, exchangeID, symbol); ok {
			return id, nil
		}
	}

	pair, err := r.store.UpsertTradingPair(ctx, models.NewTradingPair{
		Symbol:     symbol,
		BaseAsset:  base,
		QuoteAsset: quote,
		ExchangeID: exchangeID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve trading pair %s: %w", symbol, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, exchangeID, symbol, pair.ID); err != nil {
			r.logger.Debug("Pair cache write failed", "symbol", symbol, "error", err.Error())
		}
	}
	return pair.ID, nil
}
