// Package exchange holds the per-venue adapters that turn public funding-rate
// endpoints into normalized records, and the registry the collector reads them from.
package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RawRecord is one exchange-native JSON object, before parsing.
type RawRecord json.RawMessage

// NormalizedRecord is a parsed observation. Symbol is canonical (e.g. BTCUSDT)
// and FundingRate keeps the exchange's decimal text.
type NormalizedRecord struct {
	Symbol          string    `json:"symbol"`
	FundingRate     string    `json:"funding_rate"`
	NextFundingTime time.Time `json:"next_funding_time"`
	ObservedAt      time.Time `json:"observed_at"`
}

// Fetcher is the network dependency of adapters. *fetcher.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Adapter knows how to fetch and parse one exchange's funding rates.
type Adapter interface {
	Name() string
	DisplayName() string
	APIURL() string
	WSURL() string
	Color() string
	FetchRaw(ctx context.Context) ([]RawRecord, error)
	Parse(raw RawRecord) (NormalizedRecord, error)
}

// Metadata describes an exchange for display and for the exchanges table.
type Metadata struct {
	Name        string
	DisplayName string
	APIURL      string
	WSURL       string
	Color       string
}

type parseFunc func(raw RawRecord, now time.Time) (NormalizedRecord, error)

// restAdapter is the shared Adapter implementation; exchanges differ only in
// metadata, fetch strategy and record parser.
type restAdapter struct {
	meta     Metadata
	fetcher  Fetcher
	strategy Strategy
	parse    parseFunc
	now      func() time.Time
}

func (a *restAdapter) Name() string        { return a.meta.Name }
func (a *restAdapter) DisplayName() string { return a.meta.DisplayName }
func (a *restAdapter) APIURL() string      { return a.meta.APIURL }
func (a *restAdapter) WSURL() string       { return a.meta.WSURL }
func (a *restAdapter) Color() string       { return a.meta.Color }

// Strategy exposes how the adapter fetches, for diagnostics.
func (a *restAdapter) Strategy() Strategy { return a.strategy }

func (a *restAdapter) FetchRaw(ctx context.Context) ([]RawRecord, error) {
	return a.strategy.Fetch(ctx, a.fetcher)
}

func (a *restAdapter) Parse(raw RawRecord) (NormalizedRecord, error) {
	return a.parse(raw, a.now())
}

// Option customizes a built-in adapter.
type Option func(*options)

type options struct {
	baseURL    string
	detailRate float64
	logger     *slog.Logger
	now        func() time.Time
}

// WithBaseURL points the adapter at another host, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithDetailRate caps per-instrument detail requests per second for
// list-then-detail adapters. Zero or negative means unlimited.
func WithDetailRate(perSecond float64) Option {
	return func(o *options) { o.detailRate = perSecond }
}

// WithLogger sets the logger for skipped detail requests.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides the time source used for ObservedAt and timestamp validation.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

const defaultDetailRate = 5

func buildOptions(defaultBase string, opts []Option) options {
	o := options{baseURL: defaultBase, detailRate: defaultDetailRate, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

func (o options) limiter() *rate.Limiter {
	if o.detailRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.detailRate), 1)
}

func newRESTAdapter(meta Metadata, f Fetcher, o options, strategy Strategy, parse parseFunc) *restAdapter {
	meta.APIURL = o.baseURL
	return &restAdapter{
		meta:     meta,
		fetcher:  f,
		strategy: strategy,
		parse:    parse,
		now:      o.now,
	}
}
