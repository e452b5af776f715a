package handlers

import (
	"context"

	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/irfndi/funding-monitor-go/internal/cache"
	"github.com/irfndi/funding-monitor-go/internal/models"
	"github.com/irfndi/funding-monitor-go/internal/services"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetExchanges(ctx context.Context, activeOnly bool) ([]models.Exchange, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Exchange), args.Error(1)
}

func (m *MockStore) GetExchangeStats(ctx context.Context) ([]models.ExchangeStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExchangeStats), args.Error(1)
}

func (m *MockStore) GetFundingRates(ctx context.Context, filter models.FundingRateFilter) ([]models.FundingRateWithExchange, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FundingRateWithExchange), args.Error(1)
}

func (m *MockStore) GetLatestFundingRates(ctx context.Context) ([]models.FundingRateWithExchange, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FundingRateWithExchange), args.Error(1)
}

func (m *MockStore) GetHotFundingRates(ctx context.Context, threshold decimal.Decimal) ([]models.FundingRateWithExchange, error) {
	args := m.Called(ctx, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FundingRateWithExchange), args.Error(1)
}

func (m *MockStore) GetFundingRateHistory(ctx context.Context, symbol string, exchangeID int, hours int) ([]models.FundingRate, error) {
	args := m.Called(ctx, symbol, exchangeID, hours)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FundingRate), args.Error(1)
}

type MockSnapshotCache struct {
	mock.Mock
}

func (m *MockSnapshotCache) Get(ctx context.Context) (*cache.SnapshotEntry, bool) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*cache.SnapshotEntry), args.Bool(1)
}

func (m *MockSnapshotCache) Set(ctx context.Context, rates []models.FundingRateWithExchange) error {
	args := m.Called(ctx, rates)
	return args.Error(0)
}

type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockCollector struct {
	mock.Mock
}

func (m *MockCollector) GetWorkerStatus() map[string]services.Worker {
	args := m.Called()
	return args.Get(0).(map[string]services.Worker)
}

func (m *MockCollector) IsHealthy() bool {
	args := m.Called()
	return args.Bool(0)
}

type MockUpdateProcessor struct {
	mock.Mock
}

func (m *MockUpdateProcessor) HandleUpdate(ctx context.Context, update *tgmodels.Update) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}
