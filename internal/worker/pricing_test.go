package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paddock-market/internal/config"
	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/pricing"
	"github.com/paddock-market/internal/service"
)

type MockAdjuster struct {
	mock.Mock
}

func (m *MockAdjuster) RunPriceAdjustment(ctx context.Context, actor domain.Actor, sport domain.Sport) (*service.AdjustmentRun, error) {
	args := m.Called(ctx, actor, sport)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AdjustmentRun), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPricingWorker_RunOnce(t *testing.T) {
	market := new(MockAdjuster)
	market.On("RunPriceAdjustment", mock.Anything, domain.SystemActor, domain.SportMotoGP).
		Return(&service.AdjustmentRun{Sport: domain.SportMotoGP, Result: &pricing.Result{}}, nil)
	market.On("RunPriceAdjustment", mock.Anything, domain.SystemActor, domain.SportF1).
		Return(nil, errors.New("saving rider prices: persistence failure"))

	w := NewPricingWorker(market, []domain.Sport{domain.SportMotoGP, domain.SportF1},
		&config.PricingConfig{Interval: time.Hour}, discardLogger())

	assert.Equal(t, 1, w.RunOnce(context.Background()))
	market.AssertExpectations(t)
}

func TestPricingWorker_RunInProgressIsNotAFailure(t *testing.T) {
	market := new(MockAdjuster)
	market.On("RunPriceAdjustment", mock.Anything, domain.SystemActor, domain.SportMotoGP).
		Return(nil, domain.ErrRunInProgress)

	w := NewPricingWorker(market, []domain.Sport{domain.SportMotoGP},
		&config.PricingConfig{Interval: time.Hour}, discardLogger())

	assert.Equal(t, 0, w.RunOnce(context.Background()))
}

func TestPricingWorker_StartRunsImmediately(t *testing.T) {
	market := new(MockAdjuster)
	called := make(chan struct{}, 1)
	market.On("RunPriceAdjustment", mock.Anything, domain.SystemActor, domain.SportF1).
		Run(func(mock.Arguments) {
			select {
			case called <- struct{}{}:
			default:
			}
		}).
		Return(&service.AdjustmentRun{Sport: domain.SportF1}, nil)

	w := NewPricingWorker(market, []domain.Sport{domain.SportF1},
		&config.PricingConfig{Interval: time.Hour}, discardLogger())

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("initial adjustment cycle did not run")
	}

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop())
}
