package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/metrics"
	"github.com/paddock-market/internal/pricing"
)

// AdjustmentRun describes one invocation of the price adjustment
type AdjustmentRun struct {
	RunID     string          `json:"run_id"`
	Sport     domain.Sport    `json:"sport"`
	StartedAt time.Time       `json:"started_at"`
	Result    *pricing.Result `json:"result,omitempty"`
}

// NoOp reports whether the run found nothing to process
func (r *AdjustmentRun) NoOp() bool {
	return r.Result == nil
}

// MarketService runs the price adjustment and persists its outcome
type MarketService struct {
	store    PricingStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running map[domain.Sport]bool
}

// NewMarketService creates a new market service
func NewMarketService(store PricingStore, notifier Notifier, logger *slog.Logger) *MarketService {
	return &MarketService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		running:  make(map[domain.Sport]bool),
	}
}

// PendingRaces returns closed races whose prices have not been adjusted yet,
// in processing order.
func (s *MarketService) PendingRaces(ctx context.Context, sport domain.Sport) ([]domain.Race, error) {
	races, err := s.store.ListRaces(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("loading races: %w", err)
	}
	return pendingRaces(races, s.now()), nil
}

func pendingRaces(races []domain.Race, now time.Time) []domain.Race {
	var out []domain.Race
	for _, r := range races {
		if r.Closed(now) && !r.PriceAdjusted {
			out = append(out, r)
		}
	}
	return pricing.SortRaces(out)
}

// RunPriceAdjustment adjusts prices for every closed race not yet processed.
// Prices are written first and races are flagged last, so a failed run is
// retried in full on the next invocation.
func (s *MarketService) RunPriceAdjustment(ctx context.Context, actor domain.Actor, sport domain.Sport) (*AdjustmentRun, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !s.acquire(sport) {
		return nil, domain.ErrRunInProgress
	}
	defer s.release(sport)

	run := &AdjustmentRun{
		RunID:     uuid.New().String(),
		Sport:     sport,
		StartedAt: s.now(),
	}
	logger := s.logger.With("run_id", run.RunID, "sport", sport, "actor", actor.ID)

	data, err := loadSeason(ctx, s.store, sport, false)
	if err != nil {
		metrics.PriceAdjustmentRuns.WithLabelValues(string(sport), "load_failed").Inc()
		return nil, err
	}

	pending := pendingRaces(data.races, run.StartedAt)
	if len(pending) == 0 {
		logger.Debug("no races pending price adjustment")
		metrics.PriceAdjustmentRuns.WithLabelValues(string(sport), "noop").Inc()
		return run, nil
	}

	result := pricing.Run(pricing.Input{
		Races:        pending,
		Participants: data.participants,
		Snapshots:    data.snapshots,
		Riders:       data.riders,
		Constructors: data.constructors,
	})
	run.Result = &result

	for _, report := range result.Reports {
		logger.Info("race prices computed",
			"race_id", report.RaceID,
			"round", report.Round,
			"qualifying", report.Qualifying,
			"rider_increase", report.RiderIncrease,
			"rider_redistributed", report.RiderRedistributed,
			"constructor_increase", report.ConstructorIncrease,
			"constructor_redistributed", report.ConstructorRedistributed,
		)
	}

	if len(result.RiderChanges) > 0 {
		if err := s.store.UpdateRiderPrices(ctx, sport, result.RiderChanges); err != nil {
			return nil, s.persistFailed(logger, sport, "rider prices", err)
		}
	}
	if len(result.ConstructorChanges) > 0 {
		if err := s.store.UpdateConstructorPrices(ctx, sport, result.ConstructorChanges); err != nil {
			return nil, s.persistFailed(logger, sport, "constructor prices", err)
		}
	}
	if err := s.store.MarkRacesPriceAdjusted(ctx, sport, result.ProcessedRaceIDs); err != nil {
		return nil, s.persistFailed(logger, sport, "race flags", err)
	}

	s.record(sport, result)
	logger.Info("price adjustment completed",
		"races", len(result.ProcessedRaceIDs),
		"rider_changes", len(result.RiderChanges),
		"constructor_changes", len(result.ConstructorChanges),
	)

	s.notifier.Notify(domain.Notification{
		Kind:    domain.NotificationPriceUpdate,
		Sport:   sport,
		Message: fmt.Sprintf("prices updated after %d race(s)", len(result.ProcessedRaceIDs)),
		Data: map[string]interface{}{
			"run_id":              run.RunID,
			"races":               result.ProcessedRaceIDs,
			"rider_changes":       result.RiderChanges,
			"constructor_changes": result.ConstructorChanges,
		},
		Timestamp: s.now(),
	})

	return run, nil
}

func (s *MarketService) persistFailed(logger *slog.Logger, sport domain.Sport, step string, err error) error {
	logger.Error("price adjustment aborted", "step", step, "error", err)
	metrics.PriceAdjustmentRuns.WithLabelValues(string(sport), "persist_failed").Inc()
	s.notifier.Notify(domain.Notification{
		Kind:      domain.NotificationCritical,
		Sport:     sport,
		Message:   fmt.Sprintf("price adjustment failed while saving %s", step),
		Data:      map[string]string{"step": step},
		Timestamp: s.now(),
	})
	return fmt.Errorf("saving %s: %w: %w", step, domain.ErrPersistence, err)
}

func (s *MarketService) record(sport domain.Sport, result pricing.Result) {
	label := string(sport)
	metrics.PriceAdjustmentRuns.WithLabelValues(label, "success").Inc()
	metrics.RacesProcessed.WithLabelValues(label).Add(float64(len(result.ProcessedRaceIDs)))
	for _, report := range result.Reports {
		metrics.PriceDeltaUnits.WithLabelValues(label, "rider", "up").Add(float64(report.RiderIncrease))
		metrics.PriceDeltaUnits.WithLabelValues(label, "rider", "down").Add(float64(report.RiderRedistributed))
		metrics.PriceDeltaUnits.WithLabelValues(label, "constructor", "up").Add(float64(report.ConstructorIncrease))
		metrics.PriceDeltaUnits.WithLabelValues(label, "constructor", "down").Add(float64(report.ConstructorRedistributed))
	}
}

func (s *MarketService) acquire(sport domain.Sport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[sport] {
		return false
	}
	s.running[sport] = true
	return true
}

func (s *MarketService) release(sport domain.Sport) {
	s.mu.Lock()
	delete(s.running, sport)
	s.mu.Unlock()
}
