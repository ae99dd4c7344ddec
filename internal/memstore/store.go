// Package memstore is an in-memory implementation of the service store,
// used for local runs without PostgreSQL and in tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/paddock-market/internal/domain"
)

// Store keeps every collection in maps guarded by a single lock
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	riders       map[int64]domain.Rider
	constructors map[int64]domain.Constructor
	races        map[int64]domain.Race
	participants map[int64]domain.Participant
	snapshots    map[int64]domain.TeamSnapshot
	points       map[pointsKey]domain.RiderRoundPoints
	pointsSport  map[pointsKey]domain.Sport
}

type pointsKey struct {
	raceID  int64
	riderID int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		riders:       make(map[int64]domain.Rider),
		constructors: make(map[int64]domain.Constructor),
		races:        make(map[int64]domain.Race),
		participants: make(map[int64]domain.Participant),
		snapshots:    make(map[int64]domain.TeamSnapshot),
		points:       make(map[pointsKey]domain.RiderRoundPoints),
		pointsSport:  make(map[pointsKey]domain.Sport),
	}
}

func (s *Store) id(explicit int64) int64 {
	if explicit > s.nextID {
		s.nextID = explicit
		return explicit
	}
	if explicit > 0 {
		return explicit
	}
	s.nextID++
	return s.nextID
}

// AddRider seeds a rider. A zero id is assigned.
func (s *Store) AddRider(r domain.Rider) domain.Rider {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id(r.ID)
	if r.InitialPrice == 0 {
		r.InitialPrice = r.Price
	}
	s.riders[r.ID] = r
	return r
}

// AddConstructor seeds a constructor. A zero id is assigned.
func (s *Store) AddConstructor(c domain.Constructor) domain.Constructor {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id(c.ID)
	if c.InitialPrice == 0 {
		c.InitialPrice = c.Price
	}
	s.constructors[c.ID] = c
	return c
}

// ListRiders implements service.CatalogReader
func (s *Store) ListRiders(_ context.Context, sport domain.Sport) ([]domain.Rider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Rider, 0, len(s.riders))
	for _, r := range s.riders {
		if r.Sport == sport {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListConstructors implements service.CatalogReader
func (s *Store) ListConstructors(_ context.Context, sport domain.Sport) ([]domain.Constructor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Constructor, 0, len(s.constructors))
	for _, c := range s.constructors {
		if c.Sport == sport {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListRaces implements service.CatalogReader
func (s *Store) ListRaces(_ context.Context, sport domain.Sport) ([]domain.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Race, 0, len(s.races))
	for _, r := range s.races {
		if r.Sport == sport {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListParticipants implements service.CatalogReader
func (s *Store) ListParticipants(_ context.Context, sport domain.Sport) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		if p.Sport == sport {
			p.RiderIDs = append([]int64(nil), p.RiderIDs...)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListSnapshots implements service.CatalogReader
func (s *Store) ListSnapshots(_ context.Context, sport domain.Sport) ([]domain.TeamSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TeamSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if snap.Sport == sport {
			snap.RiderIDs = append([]int64(nil), snap.RiderIDs...)
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListRiderPoints implements service.CatalogReader
func (s *Store) ListRiderPoints(_ context.Context, sport domain.Sport) ([]domain.RiderRoundPoints, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RiderRoundPoints, 0, len(s.points))
	for k, p := range s.points {
		if s.pointsSport[k] == sport {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RaceID != out[j].RaceID {
			return out[i].RaceID < out[j].RaceID
		}
		return out[i].RiderID < out[j].RiderID
	})
	return out, nil
}

// UpdateRiderPrices implements service.PriceWriter. Unknown ids fail the
// whole batch before anything is written.
func (s *Store) UpdateRiderPrices(_ context.Context, sport domain.Sport, changes []domain.PriceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range changes {
		if r, ok := s.riders[c.ID]; !ok || r.Sport != sport {
			return domain.ErrRiderNotFound
		}
	}
	for _, c := range changes {
		r := s.riders[c.ID]
		r.Price = c.NewPrice
		s.riders[c.ID] = r
	}
	return nil
}

// UpdateConstructorPrices implements service.PriceWriter
func (s *Store) UpdateConstructorPrices(_ context.Context, sport domain.Sport, changes []domain.PriceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range changes {
		if ctor, ok := s.constructors[c.ID]; !ok || ctor.Sport != sport {
			return domain.ErrConstructorNotFound
		}
	}
	for _, c := range changes {
		ctor := s.constructors[c.ID]
		ctor.Price = c.NewPrice
		s.constructors[c.ID] = ctor
	}
	return nil
}

// MarkRacesPriceAdjusted implements service.PriceWriter
func (s *Store) MarkRacesPriceAdjusted(_ context.Context, sport domain.Sport, raceIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range raceIDs {
		if r, ok := s.races[id]; !ok || r.Sport != sport {
			return domain.ErrRaceNotFound
		}
	}
	for _, id := range raceIDs {
		r := s.races[id]
		r.PriceAdjusted = true
		s.races[id] = r
	}
	return nil
}

// InsertSnapshot appends a snapshot and refreshes the participant's current
// rider list.
func (s *Store) InsertSnapshot(_ context.Context, snapshot domain.TeamSnapshot) (domain.TeamSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[snapshot.ParticipantID]
	if !ok {
		return domain.TeamSnapshot{}, domain.ErrParticipantNotFound
	}
	snapshot.ID = s.id(snapshot.ID)
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}
	snapshot.RiderIDs = append([]int64(nil), snapshot.RiderIDs...)
	s.snapshots[snapshot.ID] = snapshot

	p.RiderIDs = append([]int64(nil), snapshot.RiderIDs...)
	s.participants[p.ID] = p
	return snapshot, nil
}

// UpsertRiderPoints implements service.Store
func (s *Store) UpsertRiderPoints(_ context.Context, sport domain.Sport, points []domain.RiderRoundPoints) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		k := pointsKey{raceID: p.RaceID, riderID: p.RiderID}
		s.points[k] = p
		s.pointsSport[k] = sport
	}
	return nil
}

// CreateRace implements service.Store
func (s *Store) CreateRace(_ context.Context, race domain.Race) (domain.Race, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	race.ID = s.id(race.ID)
	s.races[race.ID] = race
	return race, nil
}

// UpdateRaceSchedule implements service.Store
func (s *Store) UpdateRaceSchedule(_ context.Context, sport domain.Sport, raceID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.races[raceID]
	if !ok || r.Sport != sport {
		return domain.ErrRaceNotFound
	}
	r.ScheduledAt = at
	s.races[raceID] = r
	return nil
}

// CreateParticipant implements service.Store
func (s *Store) CreateParticipant(_ context.Context, participant domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant.ID = s.id(participant.ID)
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = time.Now()
	}
	s.participants[participant.ID] = participant
	return participant, nil
}

// UpdateRider implements service.Store
func (s *Store) UpdateRider(_ context.Context, rider domain.Rider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.riders[rider.ID]
	if !ok || existing.Sport != rider.Sport {
		return domain.ErrRiderNotFound
	}
	s.riders[rider.ID] = rider
	return nil
}

// UpsertConstructors implements service.Store. Existing constructors keep
// their current price.
func (s *Store) UpsertConstructors(_ context.Context, constructors []domain.Constructor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range constructors {
		c.ID = s.id(c.ID)
		if existing, ok := s.constructors[c.ID]; ok {
			c.Price = existing.Price
			c.InitialPrice = existing.InitialPrice
		} else {
			c.InitialPrice = c.Price
		}
		s.constructors[c.ID] = c
	}
	return nil
}

// UpsertRiders implements service.Store. Existing riders keep their current
// price and condition.
func (s *Store) UpsertRiders(_ context.Context, riders []domain.Rider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range riders {
		r.ID = s.id(r.ID)
		if existing, ok := s.riders[r.ID]; ok {
			r.Price = existing.Price
			r.InitialPrice = existing.InitialPrice
			r.Condition = existing.Condition
		} else {
			r.InitialPrice = r.Price
		}
		s.riders[r.ID] = r
	}
	return nil
}
