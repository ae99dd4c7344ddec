package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/pricing"
	"github.com/paddock-market/internal/roster"
)

// CatalogService serves catalog reads and administrative edits
type CatalogService struct {
	store     Store
	standings *ScoringService
	logger    *slog.Logger
}

// NewCatalogService creates a new catalog service. standings may be nil.
func NewCatalogService(store Store, standings *ScoringService, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:     store,
		standings: standings,
		logger:    logger,
	}
}

// Riders lists the riders of a sport
func (s *CatalogService) Riders(ctx context.Context, sport domain.Sport) ([]domain.Rider, error) {
	return s.store.ListRiders(ctx, sport)
}

// Constructors lists the constructors of a sport with their effective prices
func (s *CatalogService) Constructors(ctx context.Context, sport domain.Sport) ([]domain.ConstructorListing, error) {
	constructors, err := s.store.ListConstructors(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("loading constructors: %w", err)
	}
	riders, err := s.store.ListRiders(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("loading riders: %w", err)
	}
	return roster.Valuate(constructors, riders), nil
}

// Races lists the calendar in chronological order
func (s *CatalogService) Races(ctx context.Context, sport domain.Sport) ([]domain.Race, error) {
	races, err := s.store.ListRaces(ctx, sport)
	if err != nil {
		return nil, err
	}
	return pricing.SortRaces(races), nil
}

// CreateParticipant registers a participant
func (s *CatalogService) CreateParticipant(ctx context.Context, actor domain.Actor, sport domain.Sport, req domain.CreateParticipantRequest) (*domain.Participant, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	p, err := s.store.CreateParticipant(ctx, domain.Participant{
		Sport:     sport,
		Name:      req.Name,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating participant: %w", err)
	}
	s.logger.Info("participant created", "sport", sport, "participant_id", p.ID, "actor", actor.ID)
	s.invalidate(ctx, sport, "participant created")
	return &p, nil
}

// CreateRace adds a race to the calendar
func (s *CatalogService) CreateRace(ctx context.Context, actor domain.Actor, sport domain.Sport, req domain.CreateRaceRequest) (*domain.Race, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	race, err := s.store.CreateRace(ctx, domain.Race{
		Sport:       sport,
		Round:       req.Round,
		Name:        req.Name,
		ScheduledAt: req.ScheduledAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating race: %w", err)
	}
	s.logger.Info("race created", "sport", sport, "race_id", race.ID, "round", race.Round, "actor", actor.ID)
	return &race, nil
}

// RescheduleRace corrects the start time of a race. It does not touch the
// processed flag, so an already adjusted race is never processed twice.
func (s *CatalogService) RescheduleRace(ctx context.Context, actor domain.Actor, sport domain.Sport, raceID int64, at time.Time) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if at.IsZero() {
		return fmt.Errorf("%w: scheduled_at is required", domain.ErrInvalidRequest)
	}
	if err := s.store.UpdateRaceSchedule(ctx, sport, raceID, at.UTC()); err != nil {
		return fmt.Errorf("rescheduling race: %w", err)
	}
	s.logger.Info("race rescheduled", "sport", sport, "race_id", raceID, "scheduled_at", at.UTC(), "actor", actor.ID)
	return nil
}

// UpdateRider applies an admin patch to a rider
func (s *CatalogService) UpdateRider(ctx context.Context, actor domain.Actor, sport domain.Sport, riderID int64, patch domain.RiderPatch) (*domain.Rider, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	riders, err := s.store.ListRiders(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("loading riders: %w", err)
	}
	for _, r := range riders {
		if r.ID != riderID {
			continue
		}
		updated := patch.Apply(r)
		if err := s.store.UpdateRider(ctx, updated); err != nil {
			return nil, fmt.Errorf("updating rider: %w", err)
		}
		s.logger.Info("rider updated", "sport", sport, "rider_id", riderID, "actor", actor.ID)
		s.invalidate(ctx, sport, "rider updated")
		return &updated, nil
	}
	return nil, domain.ErrRiderNotFound
}

// ImportPoints stores the points of a race. Rows for riders outside the
// catalog are skipped; the number of stored rows is returned.
func (s *CatalogService) ImportPoints(ctx context.Context, actor domain.Actor, imp domain.PointsImport) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	if err := imp.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	sport, err := domain.ParseSport(string(imp.Sport))
	if err != nil {
		return 0, err
	}

	races, err := s.store.ListRaces(ctx, sport)
	if err != nil {
		return 0, fmt.Errorf("loading races: %w", err)
	}
	found := false
	for _, r := range races {
		if r.ID == imp.RaceID {
			found = true
			break
		}
	}
	if !found {
		return 0, domain.ErrRaceNotFound
	}

	riders, err := s.store.ListRiders(ctx, sport)
	if err != nil {
		return 0, fmt.Errorf("loading riders: %w", err)
	}
	known := make(map[int64]bool, len(riders))
	for _, r := range riders {
		known[r.ID] = true
	}

	rows := make([]domain.RiderRoundPoints, 0, len(imp.Points))
	seen := make(map[int64]int, len(imp.Points))
	for _, in := range imp.Points {
		if !known[in.RiderID] {
			s.logger.Warn("skipping points for unknown rider", "sport", sport, "race_id", imp.RaceID, "rider_id", in.RiderID)
			continue
		}
		// last row wins for duplicated riders
		if i, ok := seen[in.RiderID]; ok {
			rows[i] = in.ToRoundPoints(imp.RaceID)
			continue
		}
		seen[in.RiderID] = len(rows)
		rows = append(rows, in.ToRoundPoints(imp.RaceID))
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := s.store.UpsertRiderPoints(ctx, sport, rows); err != nil {
		return 0, fmt.Errorf("storing rider points: %w", err)
	}
	s.logger.Info("rider points imported", "sport", sport, "race_id", imp.RaceID, "rows", len(rows), "actor", actor.ID)

	s.invalidate(ctx, sport, "points updated")
	return len(rows), nil
}

// Seed loads catalog riders and constructors for a sport. Prices of entries
// already present are kept.
func (s *CatalogService) Seed(ctx context.Context, actor domain.Actor, sport domain.Sport, constructors []domain.Constructor, riders []domain.Rider) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	for i := range constructors {
		constructors[i].Sport = sport
	}
	for i := range riders {
		riders[i].Sport = sport
	}
	if err := s.store.UpsertConstructors(ctx, constructors); err != nil {
		return fmt.Errorf("seeding constructors: %w", err)
	}
	if err := s.store.UpsertRiders(ctx, riders); err != nil {
		return fmt.Errorf("seeding riders: %w", err)
	}
	s.logger.Info("catalog seeded", "sport", sport, "constructors", len(constructors), "riders", len(riders), "actor", actor.ID)
	s.invalidate(ctx, sport, "catalog seeded")
	return nil
}

// invalidate drops cached standings after a write that changes scores,
// affiliations or the participant set
func (s *CatalogService) invalidate(ctx context.Context, sport domain.Sport, reason string) {
	if s.standings != nil {
		s.standings.Invalidate(ctx, sport, reason)
	}
}
