package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/paddock-market/internal/config"
	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/service"
)

// Adjuster runs a price adjustment for one sport
type Adjuster interface {
	RunPriceAdjustment(ctx context.Context, actor domain.Actor, sport domain.Sport) (*service.AdjustmentRun, error)
}

// PricingWorker periodically applies price adjustments for closed races
type PricingWorker struct {
	market  Adjuster
	sports  []domain.Sport
	config  *config.PricingConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewPricingWorker creates a new pricing worker
func NewPricingWorker(
	market Adjuster,
	sports []domain.Sport,
	cfg *config.PricingConfig,
	logger *slog.Logger,
) *PricingWorker {
	return &PricingWorker{
		market: market,
		sports: sports,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background adjustment loop
func (w *PricingWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("pricing worker started", "interval", w.config.Interval, "sports", w.sports)

	go w.run(ctx)
	return nil
}

// Stop stops the background adjustment loop and waits for the current cycle
func (w *PricingWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("pricing worker stopped")
	return nil
}

// run is the main worker loop
func (w *PricingWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// Catch up on races that closed while the process was down
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single adjustment cycle over every sport and returns the
// number of sports whose run failed
func (w *PricingWorker) RunOnce(ctx context.Context) int {
	startTime := time.Now()
	adjusted, failed := 0, 0

	for _, sport := range w.sports {
		run, err := w.market.RunPriceAdjustment(ctx, domain.SystemActor, sport)
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			w.logger.Debug("price adjustment already running", "sport", sport)
		case err != nil:
			w.logger.Error("price adjustment failed", "sport", sport, "error", err)
			failed++
		case !run.NoOp():
			adjusted++
		}
	}

	w.logger.Debug("pricing cycle completed",
		"duration", time.Since(startTime),
		"adjusted", adjusted,
		"errors", failed,
	)
	return failed
}

// IsRunning returns whether the worker is currently running
func (w *PricingWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
