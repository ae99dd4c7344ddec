package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/paddock-market/internal/config"
	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/metrics"
	"github.com/paddock-market/internal/pricing"
	"github.com/paddock-market/internal/roster"
	"github.com/paddock-market/internal/scoring"
)

// ScoringService provides read-side scoring operations
type ScoringService struct {
	store    CatalogReader
	cache    StandingsCache
	config   *config.StandingsConfig
	notifier Notifier
	logger   *slog.Logger
}

// NewScoringService creates a new scoring service. cache may be nil.
func NewScoringService(
	store CatalogReader,
	cache StandingsCache,
	cfg *config.StandingsConfig,
	notifier Notifier,
	logger *slog.Logger,
) *ScoringService {
	return &ScoringService{
		store:    store,
		cache:    cache,
		config:   cfg,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *ScoringService) calculator(ctx context.Context, sport domain.Sport) (*season, *scoring.Calculator, error) {
	data, err := loadSeason(ctx, s.store, sport, true)
	if err != nil {
		return nil, nil, err
	}
	calc := scoring.NewCalculator(data.snapshots, data.points, data.riders, data.constructors)
	return data, calc, nil
}

// RaceScore returns the score of a participant for one race
func (s *ScoringService) RaceScore(ctx context.Context, sport domain.Sport, participantID, raceID int64) (*scoring.Breakdown, error) {
	defer observe("race", time.Now())

	data, calc, err := s.calculator(ctx, sport)
	if err != nil {
		return nil, err
	}
	if _, ok := data.participant(participantID); !ok {
		return nil, domain.ErrParticipantNotFound
	}
	if _, ok := data.race(raceID); !ok {
		return nil, domain.ErrRaceNotFound
	}

	b := calc.RaceScore(participantID, raceID)
	return &b, nil
}

// GeneralScore returns the season score of a participant
func (s *ScoringService) GeneralScore(ctx context.Context, sport domain.Sport, participantID int64) (*scoring.General, error) {
	defer observe(domain.GeneralView, time.Now())

	data, calc, err := s.calculator(ctx, sport)
	if err != nil {
		return nil, err
	}
	if _, ok := data.participant(participantID); !ok {
		return nil, domain.ErrParticipantNotFound
	}

	g := calc.GeneralScore(participantID, pricing.SortRaces(data.races))
	return &g, nil
}

// CurrentTeam returns the latest roster of a participant
func (s *ScoringService) CurrentTeam(ctx context.Context, sport domain.Sport, participantID int64) (*roster.Team, error) {
	participants, err := s.store.ListParticipants(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}
	found := false
	for _, p := range participants {
		if p.ID == participantID {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrParticipantNotFound
	}

	snapshots, err := s.store.ListSnapshots(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}
	team := roster.ResolveLatestTeam(participantID, snapshots)
	return &team, nil
}

// Standings returns ranked participants for the general view or a race id.
// Cached entries are served when present; cache failures only degrade to a
// recomputation.
func (s *ScoringService) Standings(ctx context.Context, sport domain.Sport, view string, limit int) ([]domain.StandingsEntry, error) {
	if view == "" {
		view = domain.GeneralView
	}
	limit = s.clampLimit(limit)

	if s.cache != nil {
		entries, err := s.cache.GetStandings(ctx, sport, view, limit)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("failed to read standings cache", "sport", sport, "view", view, "error", err)
		}
	}

	defer observe("standings", time.Now())

	data, calc, err := s.calculator(ctx, sport)
	if err != nil {
		return nil, err
	}
	entries, err := calc.Standings(view, data.participants, data.races)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetStandings(ctx, sport, view, entries, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to store standings cache", "sport", sport, "view", view, "error", err)
		}
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Invalidate drops cached standings of a sport and tells live clients
// standings have moved.
func (s *ScoringService) Invalidate(ctx context.Context, sport domain.Sport, reason string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, sport); err != nil {
			s.logger.Warn("failed to invalidate standings cache", "sport", sport, "error", err)
		}
	}
	s.notifier.Notify(domain.Notification{
		Kind:      domain.NotificationStandings,
		Sport:     sport,
		Message:   reason,
		Timestamp: time.Now(),
	})
}

func (s *ScoringService) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	return limit
}

// ParseView validates a standings view: "general" or a positive race id
func ParseView(view string) (string, error) {
	if view == "" || view == domain.GeneralView {
		return domain.GeneralView, nil
	}
	id, err := strconv.ParseInt(view, 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("%w: standings view %q", domain.ErrInvalidRequest, view)
	}
	return strconv.FormatInt(id, 10), nil
}

func observe(view string, start time.Time) {
	metrics.ScoreComputationDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}
