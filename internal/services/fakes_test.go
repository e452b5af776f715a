package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/funding-monitor-go/internal/exchange"
	"github.com/irfndi/funding-monitor-go/internal/models"
)

var errStorageDown = errors.New("storage down")

// memoryStorage is an in-process stand-in for PostgresStorage.
type memoryStorage struct {
	mu sync.Mutex

	exchanges map[string]models.Exchange
	pairs     map[string]models.TradingPair
	rates     []models.NewFundingRate
	nextID    int

	upsertPairCalls int

	failUpsertExchange map[string]bool
	failInsert         bool
	failLatest         bool
	failPairs          bool

	alerts      []models.CustomAlert
	subscribers []models.AlertSubscriber
	hot         []models.FundingRateWithExchange
	subscribed  map[string]bool
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		exchanges:          make(map[string]models.Exchange),
		pairs:              make(map[string]models.TradingPair),
		failUpsertExchange: make(map[string]bool),
		subscribed:         make(map[string]bool),
	}
}

func (m *memoryStorage) UpsertExchange(_ context.Context, ex models.NewExchange) (models.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsertExchange[ex.Name] {
		return models.Exchange{}, errStorageDown
	}
	if existing, ok := m.exchanges[ex.Name]; ok {
		return existing, nil
	}
	m.nextID++
	row := models.Exchange{
		ID:          m.nextID,
		Name:        ex.Name,
		DisplayName: ex.DisplayName,
		APIURL:      ex.APIURL,
		WSURL:       ex.WSURL,
		Color:       ex.Color,
		IsActive:    ex.IsActive,
	}
	m.exchanges[ex.Name] = row
	return row, nil
}

func pairKey(exchangeID int, symbol string) string {
	return fmt.Sprintf("%d:%s", exchangeID, symbol)
}

func (m *memoryStorage) UpsertTradingPair(_ context.Context, p models.NewTradingPair) (models.TradingPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertPairCalls++
	if m.failPairs {
		return models.TradingPair{}, errStorageDown
	}
	key := pairKey(p.ExchangeID, p.Symbol)
	if existing, ok := m.pairs[key]; ok {
		return existing, nil
	}
	m.nextID++
	row := models.TradingPair{
		ID:         m.nextID,
		Symbol:     p.Symbol,
		BaseAsset:  p.BaseAsset,
		QuoteAsset: p.QuoteAsset,
		ExchangeID: p.ExchangeID,
		IsActive:   true,
	}
	m.pairs[key] = row
	return row, nil
}

func (m *memoryStorage) InsertFundingRates(_ context.Context, rates []models.NewFundingRate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return 0, errStorageDown
	}
	m.rates = append(m.rates, rates...)
	return int64(len(rates)), nil
}

// GetLatestFundingRates keeps the newest row per (exchange, symbol).
func (m *memoryStorage) GetLatestFundingRates(_ context.Context) ([]models.FundingRateWithExchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLatest {
		return nil, errStorageDown
	}

	byID := make(map[int]models.Exchange, len(m.exchanges))
	for _, ex := range m.exchanges {
		byID[ex.ID] = ex
	}

	latest := make(map[string]models.NewFundingRate)
	for _, r := range m.rates {
		key := pairKey(r.ExchangeID, r.Symbol)
		if cur, ok := latest[key]; !ok || !r.Timestamp.Before(cur.Timestamp) {
			latest[key] = r
		}
	}

	out := make([]models.FundingRateWithExchange, 0, len(latest))
	for _, r := range latest {
		out = append(out, models.FundingRateWithExchange{
			FundingRate: models.FundingRate{
				ExchangeID:      r.ExchangeID,
				PairID:          r.PairID,
				Symbol:          r.Symbol,
				FundingRate:     r.FundingRate,
				NextFundingTime: r.NextFundingTime,
				Timestamp:       r.Timestamp,
			},
			Exchange: byID[r.ExchangeID],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExchangeID != out[j].ExchangeID {
			return out[i].ExchangeID < out[j].ExchangeID
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (m *memoryStorage) GetTradingPairs(_ context.Context, exchangeID int) ([]models.TradingPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPairs {
		return nil, errStorageDown
	}
	out := make([]models.TradingPair, 0, len(m.pairs))
	for _, p := range m.pairs {
		if exchangeID == 0 || p.ExchangeID == exchangeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStorage) GetActiveCustomAlerts(context.Context) ([]models.CustomAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alerts, nil
}

func (m *memoryStorage) GetAlertSubscribers(context.Context) ([]models.AlertSubscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribers, nil
}

func (m *memoryStorage) GetHotFundingRates(_ context.Context, threshold decimal.Decimal) ([]models.FundingRateWithExchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FundingRateWithExchange, 0, len(m.hot))
	for _, r := range m.hot {
		if r.FundingRate.IsHot(threshold) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStorage) SetTelegramSubscription(_ context.Context, chatID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed[chatID] = enabled
	return nil
}

func (m *memoryStorage) storedRates() []models.NewFundingRate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.NewFundingRate, len(m.rates))
	copy(out, m.rates)
	return out
}

// fakeAdapter serves canned records; records that are not valid JSON
// objects with symbol and rate fail to parse.
type fakeAdapter struct {
	name    string
	records []string
	err     error
	block   chan struct{}
	panics  bool
	now     time.Time

	mu    sync.Mutex
	calls int
}

type fakeRecord struct {
	Symbol string `json:"symbol"`
	Rate   string `json:"rate"`
}

func (a *fakeAdapter) Name() string        { return a.name }
func (a *fakeAdapter) DisplayName() string { return "" }
func (a *fakeAdapter) APIURL() string      { return "https://api." + a.name + ".test" }
func (a *fakeAdapter) WSURL() string       { return "" }
func (a *fakeAdapter) Color() string       { return "#000000" }

func (a *fakeAdapter) FetchRaw(ctx context.Context) ([]exchange.RawRecord, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	if a.panics {
		panic("adapter exploded")
	}
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	out := make([]exchange.RawRecord, len(a.records))
	for i, r := range a.records {
		out[i] = exchange.RawRecord(r)
	}
	return out, nil
}

func (a *fakeAdapter) Parse(raw exchange.RawRecord) (exchange.NormalizedRecord, error) {
	var rec fakeRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Symbol == "" {
		return exchange.NormalizedRecord{}, &exchange.ParseError{Exchange: a.name, Field: "record", Err: exchange.ErrMissingField}
	}
	observed := a.now
	if observed.IsZero() {
		observed = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return exchange.NormalizedRecord{
		Symbol:          rec.Symbol,
		FundingRate:     rec.Rate,
		NextFundingTime: observed.Add(8 * time.Hour),
		ObservedAt:      observed,
	}, nil
}

func (a *fakeAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type sentMessage struct {
	ChatID string
	Text   string
}

// recordingNotifier captures sends; chats listed in fail return an error.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]bool
}

func (n *recordingNotifier) Enabled() bool { return true }

func (n *recordingNotifier) Send(_ context.Context, chatID string, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[chatID] {
		return errors.New("telegram unavailable")
	}
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMessage, len(n.sent))
	copy(out, n.sent)
	return out
}
