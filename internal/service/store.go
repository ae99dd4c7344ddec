package service

import (
	"context"
	"fmt"
	"time"

	"github.com/paddock-market/internal/domain"
)

// CatalogReader fetches whole collections for a sport. Implementations must
// return every row or an error, never a truncated page.
type CatalogReader interface {
	ListRiders(ctx context.Context, sport domain.Sport) ([]domain.Rider, error)
	ListConstructors(ctx context.Context, sport domain.Sport) ([]domain.Constructor, error)
	ListRaces(ctx context.Context, sport domain.Sport) ([]domain.Race, error)
	ListParticipants(ctx context.Context, sport domain.Sport) ([]domain.Participant, error)
	ListSnapshots(ctx context.Context, sport domain.Sport) ([]domain.TeamSnapshot, error)
	ListRiderPoints(ctx context.Context, sport domain.Sport) ([]domain.RiderRoundPoints, error)
}

// PriceWriter persists the outcome of a price adjustment run. Each call is
// applied as a single all-or-nothing batch.
type PriceWriter interface {
	UpdateRiderPrices(ctx context.Context, sport domain.Sport, changes []domain.PriceChange) error
	UpdateConstructorPrices(ctx context.Context, sport domain.Sport, changes []domain.PriceChange) error
	MarkRacesPriceAdjusted(ctx context.Context, sport domain.Sport, raceIDs []int64) error
}

// PricingStore is what the price adjustment orchestration needs
type PricingStore interface {
	CatalogReader
	PriceWriter
}

// Store is the full persistence contract
type Store interface {
	CatalogReader
	PriceWriter

	InsertSnapshot(ctx context.Context, snapshot domain.TeamSnapshot) (domain.TeamSnapshot, error)
	UpsertRiderPoints(ctx context.Context, sport domain.Sport, points []domain.RiderRoundPoints) error
	CreateRace(ctx context.Context, race domain.Race) (domain.Race, error)
	UpdateRaceSchedule(ctx context.Context, sport domain.Sport, raceID int64, at time.Time) error
	CreateParticipant(ctx context.Context, participant domain.Participant) (domain.Participant, error)
	UpdateRider(ctx context.Context, rider domain.Rider) error
	UpsertConstructors(ctx context.Context, constructors []domain.Constructor) error
	UpsertRiders(ctx context.Context, riders []domain.Rider) error
}

// Notifier delivers messages to connected clients without blocking
type Notifier interface {
	Notify(n domain.Notification)
}

// StandingsCache stores computed standings
type StandingsCache interface {
	GetStandings(ctx context.Context, sport domain.Sport, view string, limit int) ([]domain.StandingsEntry, error)
	SetStandings(ctx context.Context, sport domain.Sport, view string, entries []domain.StandingsEntry, ttl time.Duration) error
	Invalidate(ctx context.Context, sport domain.Sport) error
}

// season is a full read of one sport's collections
type season struct {
	riders       []domain.Rider
	constructors []domain.Constructor
	races        []domain.Race
	participants []domain.Participant
	snapshots    []domain.TeamSnapshot
	points       []domain.RiderRoundPoints
}

func loadSeason(ctx context.Context, store CatalogReader, sport domain.Sport, withPoints bool) (*season, error) {
	var (
		s   season
		err error
	)
	if s.riders, err = store.ListRiders(ctx, sport); err != nil {
		return nil, fmt.Errorf("loading riders: %w", err)
	}
	if s.constructors, err = store.ListConstructors(ctx, sport); err != nil {
		return nil, fmt.Errorf("loading constructors: %w", err)
	}
	if s.races, err = store.ListRaces(ctx, sport); err != nil {
		return nil, fmt.Errorf("loading races: %w", err)
	}
	if s.participants, err = store.ListParticipants(ctx, sport); err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}
	if s.snapshots, err = store.ListSnapshots(ctx, sport); err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}
	if withPoints {
		if s.points, err = store.ListRiderPoints(ctx, sport); err != nil {
			return nil, fmt.Errorf("loading rider points: %w", err)
		}
	}
	return &s, nil
}

func (s *season) race(id int64) (domain.Race, bool) {
	for _, r := range s.races {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Race{}, false
}

func (s *season) participant(id int64) (domain.Participant, bool) {
	for _, p := range s.participants {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func requireAdmin(actor domain.Actor) error {
	if !actor.Admin {
		return domain.ErrForbidden
	}
	return nil
}
