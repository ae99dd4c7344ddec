package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paddock-market/internal/config"
	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/roster"
)

// TeamStore is what roster submissions need
type TeamStore interface {
	CatalogReader
	InsertSnapshot(ctx context.Context, snapshot domain.TeamSnapshot) (domain.TeamSnapshot, error)
}

// TeamService validates and records roster submissions. Snapshots are only
// ever appended.
type TeamService struct {
	store     TeamStore
	sports    *config.Config
	standings *ScoringService
	logger    *slog.Logger
	now       func() time.Time
}

// NewTeamService creates a new team service
func NewTeamService(store TeamStore, cfg *config.Config, standings *ScoringService, logger *slog.Logger) *TeamService {
	return &TeamService{
		store:     store,
		sports:    cfg,
		standings: standings,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitTeam records a new roster snapshot for an open race
func (s *TeamService) SubmitTeam(ctx context.Context, sport domain.Sport, participantID int64, sub domain.TeamSubmission) (*domain.TeamSnapshot, error) {
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRoster, err)
	}
	rules, ok := s.sports.Sport(sport)
	if !ok {
		return nil, domain.ErrUnknownSport
	}
	if len(sub.RiderIDs) != rules.RosterSize {
		return nil, fmt.Errorf("%w: expected %d riders, got %d", domain.ErrInvalidRoster, rules.RosterSize, len(sub.RiderIDs))
	}

	data, err := loadSeason(ctx, s.store, sport, false)
	if err != nil {
		return nil, err
	}
	if _, ok := data.participant(participantID); !ok {
		return nil, domain.ErrParticipantNotFound
	}
	race, ok := data.race(sub.RaceID)
	if !ok {
		return nil, domain.ErrRaceNotFound
	}
	now := s.now()
	if race.Closed(now) {
		return nil, domain.ErrRaceLocked
	}

	cost, err := teamCost(sub, data)
	if err != nil {
		return nil, err
	}
	if cost > float64(rules.Budget) {
		return nil, fmt.Errorf("%w: cost %.1f exceeds budget %d", domain.ErrOverBudget, cost, rules.Budget)
	}

	ctorID := sub.ConstructorID
	snapshot, err := s.store.InsertSnapshot(ctx, domain.TeamSnapshot{
		Sport:         sport,
		ParticipantID: participantID,
		RaceID:        sub.RaceID,
		RiderIDs:      append([]int64(nil), sub.RiderIDs...),
		ConstructorID: &ctorID,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("inserting snapshot: %w", err)
	}

	s.logger.Info("team submitted",
		"sport", sport,
		"participant_id", participantID,
		"race_id", sub.RaceID,
		"snapshot_id", snapshot.ID,
		"cost", cost,
	)
	if s.standings != nil {
		s.standings.Invalidate(ctx, sport, "team submitted")
	}
	return &snapshot, nil
}

// teamCost prices riders at their stored price and the constructor at its
// effective price.
func teamCost(sub domain.TeamSubmission, data *season) (float64, error) {
	prices := make(map[int64]int64, len(data.riders))
	for _, r := range data.riders {
		prices[r.ID] = r.Price
	}

	var cost float64
	for _, id := range sub.RiderIDs {
		price, ok := prices[id]
		if !ok {
			return 0, fmt.Errorf("%w: rider %d", domain.ErrRiderNotFound, id)
		}
		cost += float64(price)
	}

	for _, l := range roster.Valuate(data.constructors, data.riders) {
		if l.ID == sub.ConstructorID {
			return cost + l.EffectivePrice, nil
		}
	}
	return 0, fmt.Errorf("%w: constructor %d", domain.ErrConstructorNotFound, sub.ConstructorID)
}
