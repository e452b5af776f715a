package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRetentionStore struct {
	mock.Mock
}

func (m *MockRetentionStore) DeleteFundingRatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRetentionStore) CountFundingRates(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestNewCleanupService_Defaults(t *testing.T) {
	service := NewCleanupService(&MockRetentionStore{}, CleanupConfig{FundingRateRetention: time.Hour}, nil)
	assert.Equal(t, DefaultCleanupInterval, service.cfg.Interval)
	assert.NotNil(t, service.logger)
}

func TestCleanupService_RunCleanup(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	store := &MockRetentionStore{}
	store.On("DeleteFundingRatesBefore", mock.Anything, now.Add(-720*time.Hour)).Return(int64(42), nil).Once()

	service := NewCleanupService(store, CleanupConfig{FundingRateRetention: 720 * time.Hour}, nil)
	service.now = func() time.Time { return now }

	deleted, err := service.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
	store.AssertExpectations(t)
}

func TestCleanupService_RunCleanupError(t *testing.T) {
	store := &MockRetentionStore{}
	store.On("DeleteFundingRatesBefore", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(0), errors.New("connection reset"))

	service := NewCleanupService(store, CleanupConfig{FundingRateRetention: time.Hour}, nil)

	_, err := service.RunCleanup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to cleanup funding rates")
}

func TestCleanupService_RetentionDisabled(t *testing.T) {
	store := &MockRetentionStore{}
	service := NewCleanupService(store, CleanupConfig{}, nil)

	deleted, err := service.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)

	service.Start(context.Background())
	service.Stop()
	store.AssertNotCalled(t, "DeleteFundingRatesBefore", mock.Anything, mock.Anything)
}

func TestCleanupService_StartRunsImmediately(t *testing.T) {
	called := make(chan struct{}, 1)
	store := &MockRetentionStore{}
	store.On("DeleteFundingRatesBefore", mock.Anything, mock.AnythingOfType("time.Time")).
		Return(int64(3), nil).
		Run(func(mock.Arguments) {
			select {
			case called <- struct{}{}:
			default:
			}
		})

	service := NewCleanupService(store, CleanupConfig{FundingRateRetention: time.Hour, Interval: time.Hour}, nil)
	service.Start(context.Background())

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("initial cleanup did not run")
	}

	assert.NotPanics(t, service.Stop)
}

func TestCleanupService_GetDataStats(t *testing.T) {
	store := &MockRetentionStore{}
	store.On("CountFundingRates", mock.Anything).Return(int64(1200), nil).Once()

	service := NewCleanupService(store, CleanupConfig{}, nil)
	stats, err := service.GetDataStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"funding_rates_count": 1200}, stats)

	store.On("CountFundingRates", mock.Anything).Return(int64(0), errors.New("timeout")).Once()
	_, err = service.GetDataStats(context.Background())
	assert.Error(t, err)
}
