package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrEpochInvalid rejects zero, negative, pre-2015 or far-future timestamps.
	ErrEpochInvalid = errors.New("timestamp outside valid range")
	// ErrMissingField marks a required field that is absent or empty.
	ErrMissingField = errors.New("missing field")
	// ErrUpstream marks an error envelope returned with a 2xx status.
	ErrUpstream = errors.New("exchange returned an error response")
	// ErrRateOutOfRange rejects rates that are not a per-period fraction.
	ErrRateOutOfRange = errors.New("funding rate outside [-1, 1]")
)

var maxAbsRate = decimal.NewFromInt(1)

var minValidTime = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

const maxFutureSkew = 30 * 24 * time.Hour

// ParseError rejects a single record; the rest of the batch is unaffected.
type ParseError struct {
	Exchange string
	Symbol   string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: invalid %s: %v", e.Exchange, e.Field, e.Err)
	}
	return fmt.Sprintf("%s %s: invalid %s: %v", e.Exchange, e.Symbol, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func upstreamError(exchange string, code interface{}, msg string) error {
	return fmt.Errorf("%w: %s code=%v msg=%q", ErrUpstream, exchange, code, msg)
}

// flexString decodes a JSON string or number and keeps its text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

func parseEpoch(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, ErrMissingField
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrEpochInvalid, v)
	}
	return int64(f), nil
}

func parseEpochMillis(v string, now time.Time) (time.Time, error) {
	n, err := parseEpoch(v)
	if err != nil {
		return time.Time{}, err
	}
	if n <= 0 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrEpochInvalid, n)
	}
	return validateTimestamp(time.UnixMilli(n).UTC(), now)
}

func parseEpochSeconds(v string, now time.Time) (time.Time, error) {
	n, err := parseEpoch(v)
	if err != nil {
		return time.Time{}, err
	}
	if n <= 0 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrEpochInvalid, n)
	}
	return validateTimestamp(time.Unix(n, 0).UTC(), now)
}

func validateTimestamp(t, now time.Time) (time.Time, error) {
	if t.Before(minValidTime) || t.After(now.Add(maxFutureSkew)) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrEpochInvalid, t.Format(time.RFC3339))
	}
	return t, nil
}

// canonicalSymbol maps venue spellings onto one form: BTC-USDT-SWAP, BTC_USDT
// and BTC-USDT all become BTCUSDT.
func canonicalSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "-SWAP")
	return strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
}

// ParseRate parses a funding rate and rejects values outside [-1, 1], which
// also keeps every accepted rate inside the NUMERIC(12, 8) column.
func ParseRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if rate.Abs().GreaterThan(maxAbsRate) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateOutOfRange, rate.String())
	}
	return rate, nil
}

// newRecord validates the common fields and builds the normalized record.
func newRecord(exchange, rawSymbol string, rate flexString, next time.Time, nextErr error, now time.Time) (NormalizedRecord, error) {
	symbol := canonicalSymbol(rawSymbol)
	if symbol == "" {
		return NormalizedRecord{}, &ParseError{Exchange: exchange, Field: "symbol", Err: ErrMissingField}
	}

	r := strings.TrimSpace(string(rate))
	if r == "" {
		return NormalizedRecord{}, &ParseError{Exchange: exchange, Symbol: symbol, Field: "funding_rate", Err: ErrMissingField}
	}
	if _, err := ParseRate(r); err != nil {
		return NormalizedRecord{}, &ParseError{Exchange: exchange, Symbol: symbol, Field: "funding_rate", Err: err}
	}

	if nextErr != nil {
		return NormalizedRecord{}, &ParseError{Exchange: exchange, Symbol: symbol, Field: "next_funding_time", Err: nextErr}
	}

	return NormalizedRecord{
		Symbol:          symbol,
		FundingRate:     r,
		NextFundingTime: next,
		ObservedAt:      now,
	}, nil
}

func decodeRecord(exchange string, raw RawRecord, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &ParseError{Exchange: exchange, Field: "record", Err: err}
	}
	return nil
}

func toRecords(items []json.RawMessage) []RawRecord {
	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		records = append(records, RawRecord(item))
	}
	return records
}

func decodeBody(exchange string, body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", exchange, err)
	}
	return nil
}
