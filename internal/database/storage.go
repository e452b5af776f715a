package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irfndi/funding-monitor-go/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// DatabasePool defines the interface for database pool operations.
// *pgxpool.Pool, TracedDB and pgxmock pools all satisfy it.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	// hotRatesLimit caps the hot-rate view.
	hotRatesLimit = 50
	// insertChunkSize keeps multi-row inserts under the Postgres bind-parameter limit.
	insertChunkSize = 1000
)

// PostgresStorage is the funding-rate store. Upserts rely on the unique
// constraints declared in schema.go and are atomic under concurrent callers.
type PostgresStorage struct {
	pool DatabasePool
	now  func() time.Time
}

func NewPostgresStorage(pool DatabasePool) *PostgresStorage {
	return &PostgresStorage{pool: pool, now: time.Now}
}

const exchangeColumns = `id, name, display_name, api_url, ws_url, color, is_active, created_at`

func scanExchange(row pgx.Row) (models.Exchange, error) {
	var e models.Exchange
	err := row.Scan(&e.ID, &e.Name, &e.DisplayName, &e.APIURL, &e.WSURL, &e.Color, &e.IsActive, &e.CreatedAt)
	return e, err
}

// UpsertExchange inserts or refreshes an exchange keyed by name.
func (s *PostgresStorage) UpsertExchange(ctx context.Context, ex models.NewExchange) (models.Exchange, error) {
	query := `
		INSERT INTO exchanges (name, display_name, api_url, ws_url, color, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			api_url = EXCLUDED.api_url,
			ws_url = EXCLUDED.ws_url,
			color = EXCLUDED.color,
			is_active = EXCLUDED.is_active
		RETURNING ` + exchangeColumns

	row := s.pool.QueryRow(ctx, query, ex.Name, ex.DisplayName, ex.APIURL, ex.WSURL, ex.Color, ex.IsActive)
	exchange, err := scanExchange(row)
	if err != nil {
		return models.Exchange{}, fmt.Errorf("failed to upsert exchange %s: %w", ex.Name, err)
	}
	return exchange, nil
}

// UpsertTradingPair inserts a pair or returns the existing row for
// (symbol, exchange_id). The active flag is left untouched on conflict.
func (s *PostgresStorage) UpsertTradingPair(ctx context.Context, pair models.NewTradingPair) (models.TradingPair, error) {
	query := `
		INSERT INTO trading_pairs (symbol, base_asset, quote_asset, exchange_id, is_active)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (symbol, exchange_id) DO UPDATE SET
			base_asset = EXCLUDED.base_asset,
			quote_asset = EXCLUDED.quote_asset
		RETURNING id, symbol, base_asset, quote_asset, exchange_id, is_active, created_at`

	var tp models.TradingPair
	err := s.pool.QueryRow(ctx, query, pair.Symbol, pair.BaseAsset, pair.QuoteAsset, pair.ExchangeID).Scan(
		&tp.ID, &tp.Symbol, &tp.BaseAsset, &tp.QuoteAsset, &tp.ExchangeID, &tp.IsActive, &tp.CreatedAt,
	)
	if err != nil {
		return models.TradingPair{}, fmt.Errorf("failed to upsert trading pair %s: %w", pair.Symbol, err)
	}
	return tp, nil
}

// InsertFundingRates writes the whole batch in one transaction so readers
// never observe a partial cycle.
func (s *PostgresStorage) InsertFundingRates(ctx context.Context, rates []models.NewFundingRate) (int64, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	start := s.now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin funding rate insert: %w", err)
	}

	var inserted int64
	for offset := 0; offset < len(rates); offset += insertChunkSize {
		end := offset + insertChunkSize
		if end > len(rates) {
			end = len(rates)
		}
		query, args := buildFundingRateInsert(rates[offset:end])
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("failed to insert funding rates: %w", err)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit funding rates: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"table":         "funding_rates",
		"rows_affected": inserted,
		"duration_ms":   s.now().Sub(start).Milliseconds(),
	}).Debug("Database operation")

	return inserted, nil
}

func buildFundingRateInsert(rates []models.NewFundingRate) (string, []interface{}) {
	const cols = 6
	var b strings.Builder
	b.WriteString("INSERT INTO funding_rates (exchange_id, pair_id, symbol, funding_rate, next_funding_time, timestamp) VALUES ")
	args := make([]interface{}, 0, len(rates)*cols)
	for i, r := range rates {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * cols
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, r.ExchangeID, r.PairID, r.Symbol, r.FundingRate, r.NextFundingTime, r.Timestamp)
	}
	return b.String(), args
}

// latestRatesQuery selects the newest observation per (exchange, symbol).
const latestRatesQuery = `
	SELECT fr.id, fr.exchange_id, fr.pair_id, fr.symbol, fr.funding_rate, fr.next_funding_time, fr.timestamp, fr.created_at,
		e.id, e.name, e.display_name, e.api_url, e.ws_url, e.color, e.is_active, e.created_at
	FROM (
		SELECT DISTINCT ON (exchange_id, symbol) *
		FROM funding_rates
		ORDER BY exchange_id, symbol, timestamp DESC, id DESC
	) fr
	JOIN exchanges e ON e.id = fr.exchange_id`

func scanRatesWithExchange(rows pgx.Rows) ([]models.FundingRateWithExchange, error) {
	defer rows.Close()

	out := make([]models.FundingRateWithExchange, 0)
	for rows.Next() {
		var r models.FundingRateWithExchange
		if err := rows.Scan(
			&r.ID, &r.ExchangeID, &r.PairID, &r.Symbol, &r.FundingRate.FundingRate, &r.NextFundingTime, &r.Timestamp, &r.CreatedAt,
			&r.Exchange.ID, &r.Exchange.Name, &r.Exchange.DisplayName, &r.Exchange.APIURL, &r.Exchange.WSURL,
			&r.Exchange.Color, &r.Exchange.IsActive, &r.Exchange.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetLatestFundingRates returns the newest rate per (exchange, symbol),
// highest rate first.
func (s *PostgresStorage) GetLatestFundingRates(ctx context.Context) ([]models.FundingRateWithExchange, error) {
	rows, err := s.pool.Query(ctx, latestRatesQuery+` ORDER BY fr.funding_rate DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest funding rates: %w", err)
	}
	rates, err := scanRatesWithExchange(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan latest funding rates: %w", err)
	}
	return rates, nil
}

// GetHotFundingRates returns latest observations whose absolute rate exceeds
// threshold, largest magnitude first.
func (s *PostgresStorage) GetHotFundingRates(ctx context.Context, threshold decimal.Decimal) ([]models.FundingRateWithExchange, error) {
	query := latestRatesQuery + `
	WHERE ABS(fr.funding_rate) > $1
	ORDER BY ABS(fr.funding_rate) DESC
	LIMIT $2`

	rows, err := s.pool.Query(ctx, query, threshold, hotRatesLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query hot funding rates: %w", err)
	}
	rates, err := scanRatesWithExchange(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan hot funding rates: %w", err)
	}
	return rates, nil
}

// GetFundingRateHistory returns one pair's observations over the last hours, oldest first.
func (s *PostgresStorage) GetFundingRateHistory(ctx context.Context, symbol string, exchangeID int, hours int) ([]models.FundingRate, error) {
	since := s.now().Add(-time.Duration(hours) * time.Hour)
	query := `
		SELECT id, exchange_id, pair_id, symbol, funding_rate, next_funding_time, timestamp, created_at
		FROM funding_rates
		WHERE symbol = $1 AND exchange_id = $2 AND timestamp >= $3
		ORDER BY timestamp ASC`

	rows, err := s.pool.Query(ctx, query, symbol, exchangeID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query funding rate history: %w", err)
	}
	defer rows.Close()

	history := make([]models.FundingRate, 0)
	for rows.Next() {
		var fr models.FundingRate
		if err := rows.Scan(&fr.ID, &fr.ExchangeID, &fr.PairID, &fr.Symbol, &fr.FundingRate, &fr.NextFundingTime, &fr.Timestamp, &fr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan funding rate history: %w", err)
		}
		history = append(history, fr)
	}
	return history, rows.Err()
}

// GetExchangeStats counts distinct symbols and averages absolute rates per exchange.
func (s *PostgresStorage) GetExchangeStats(ctx context.Context) ([]models.ExchangeStats, error) {
	query := `
		SELECT e.id, e.name, e.display_name,
			COUNT(DISTINCT fr.symbol)::int,
			COALESCE(AVG(ABS(fr.funding_rate)), 0)
		FROM exchanges e
		LEFT JOIN funding_rates fr ON fr.exchange_id = e.id
		GROUP BY e.id, e.name, e.display_name
		ORDER BY e.name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.ExchangeStats, 0)
	for rows.Next() {
		var st models.ExchangeStats
		if err := rows.Scan(&st.ExchangeID, &st.Name, &st.DisplayName, &st.Count, &st.AvgRate); err != nil {
			return nil, fmt.Errorf("failed to scan exchange stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// GetExchanges lists exchanges by name. activeOnly drops inactive rows.
func (s *PostgresStorage) GetExchanges(ctx context.Context, activeOnly bool) ([]models.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	exchanges := make([]models.Exchange, 0)
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		exchanges = append(exchanges, e)
	}
	return exchanges, rows.Err()
}

// GetTradingPairs lists active pairs; exchangeID 0 means all exchanges.
func (s *PostgresStorage) GetTradingPairs(ctx context.Context, exchangeID int) ([]models.TradingPair, error) {
	query := `
		SELECT id, symbol, base_asset, quote_asset, exchange_id, is_active, created_at
		FROM trading_pairs
		WHERE is_active = true AND ($1 = 0 OR exchange_id = $1)
		ORDER BY symbol`

	rows, err := s.pool.Query(ctx, query, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading pairs: %w", err)
	}
	defer rows.Close()

	pairs := make([]models.TradingPair, 0)
	for rows.Next() {
		var tp models.TradingPair
		if err := rows.Scan(&tp.ID, &tp.Symbol, &tp.BaseAsset, &tp.QuoteAsset, &tp.ExchangeID, &tp.IsActive, &tp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trading pair: %w", err)
		}
		pairs = append(pairs, tp)
	}
	return pairs, rows.Err()
}

// GetFundingRates lists raw observations, newest first, narrowed by filter.
func (s *PostgresStorage) GetFundingRates(ctx context.Context, filter models.FundingRateFilter) ([]models.FundingRateWithExchange, error) {
	query, args := buildFundingRatesQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query funding rates: %w", err)
	}
	rates, err := scanRatesWithExchange(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan funding rates: %w", err)
	}
	return rates, nil
}

func buildFundingRatesQuery(filter models.FundingRateFilter) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`
	SELECT fr.id, fr.exchange_id, fr.pair_id, fr.symbol, fr.funding_rate, fr.next_funding_time, fr.timestamp, fr.created_at,
		e.id, e.name, e.display_name, e.api_url, e.ws_url, e.color, e.is_active, e.created_at
	FROM funding_rates fr
	JOIN exchanges e ON e.id = fr.exchange_id
	WHERE 1=1`)

	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.ExchangeIDs) > 0 {
		b.WriteString(" AND fr.exchange_id = ANY(" + arg(filter.ExchangeIDs) + ")")
	}
	if len(filter.Symbols) > 0 {
		b.WriteString(" AND fr.symbol = ANY(" + arg(filter.Symbols) + ")")
	}
	if filter.MinRate != nil {
		b.WriteString(" AND fr.funding_rate >= " + arg(*filter.MinRate))
	}
	if filter.MaxRate != nil {
		b.WriteString(" AND fr.funding_rate <= " + arg(*filter.MaxRate))
	}
	b.WriteString(" ORDER BY fr.timestamp DESC, fr.id DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	b.WriteString(" LIMIT " + arg(limit))
	if filter.Offset > 0 {
		b.WriteString(" OFFSET " + arg(filter.Offset))
	}

	return b.String(), args
}

// DeleteFundingRatesBefore prunes observations taken before cutoff.
func (s *PostgresStorage) DeleteFundingRatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM funding_rates WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old funding rates: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountFundingRates returns the number of stored observations.
func (s *PostgresStorage) CountFundingRates(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM funding_rates`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count funding rates: %w", err)
	}
	return count, nil
}
