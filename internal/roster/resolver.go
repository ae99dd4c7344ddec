// Package roster resolves which riders and constructor a participant fielded
// for a given race, and how riders relate to constructors.
package roster

import (
	"time"

	"github.com/paddock-market/internal/domain"
)

// Team is the roster in effect for a participant
type Team struct {
	SnapshotID    int64   `json:"snapshot_id,omitempty"`
	RiderIDs      []int64 `json:"rider_ids"`
	ConstructorID *int64  `json:"constructor_id"`
}

// Empty reports whether no snapshot matched
func (t Team) Empty() bool {
	return len(t.RiderIDs) == 0 && t.ConstructorID == nil
}

// Complete reports whether the team has riders and a constructor
func (t Team) Complete() bool {
	return len(t.RiderIDs) > 0 && t.ConstructorID != nil
}

// ResolveTeam returns the roster of the latest snapshot the participant
// submitted for exactly this race. There is no fallback to other races.
func ResolveTeam(participantID, raceID int64, snapshots []domain.TeamSnapshot) Team {
	return pick(snapshots, func(s domain.TeamSnapshot) bool {
		return s.ParticipantID == participantID && s.RaceID == raceID
	})
}

// ResolveLatestTeam returns the most recent roster regardless of race
func ResolveLatestTeam(participantID int64, snapshots []domain.TeamSnapshot) Team {
	return pick(snapshots, func(s domain.TeamSnapshot) bool {
		return s.ParticipantID == participantID
	})
}

// ResolveTeamBefore returns the latest roster created strictly before cutover.
// Older seasons stored snapshots without a race reference and used this rule.
func ResolveTeamBefore(participantID int64, cutover time.Time, snapshots []domain.TeamSnapshot) Team {
	return pick(snapshots, func(s domain.TeamSnapshot) bool {
		return s.ParticipantID == participantID && s.CreatedAt.Before(cutover)
	})
}

func pick(snapshots []domain.TeamSnapshot, match func(domain.TeamSnapshot) bool) Team {
	var best *domain.TeamSnapshot
	for i := range snapshots {
		s := &snapshots[i]
		if !match(*s) {
			continue
		}
		if best == nil || newer(*s, *best) {
			best = s
		}
	}
	if best == nil {
		return Team{}
	}
	return teamOf(*best)
}

// newer orders snapshots by creation time; equal timestamps fall back to the
// sequence id so the choice is deterministic.
func newer(a, b domain.TeamSnapshot) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func teamOf(s domain.TeamSnapshot) Team {
	team := Team{
		SnapshotID: s.ID,
		RiderIDs:   append([]int64(nil), s.RiderIDs...),
	}
	if s.ConstructorID != nil {
		id := *s.ConstructorID
		team.ConstructorID = &id
	}
	return team
}

// Index groups snapshots by participant so repeated lookups over a season
// do not rescan the whole collection.
type Index struct {
	byParticipant map[int64][]domain.TeamSnapshot
}

// NewIndex builds an index over the given snapshots
func NewIndex(snapshots []domain.TeamSnapshot) *Index {
	idx := &Index{byParticipant: make(map[int64][]domain.TeamSnapshot)}
	for _, s := range snapshots {
		idx.byParticipant[s.ParticipantID] = append(idx.byParticipant[s.ParticipantID], s)
	}
	return idx
}

// Team resolves the roster for a participant and race
func (idx *Index) Team(participantID, raceID int64) Team {
	return ResolveTeam(participantID, raceID, idx.byParticipant[participantID])
}

// Latest resolves the most recent roster for a participant
func (idx *Index) Latest(participantID int64) Team {
	return ResolveLatestTeam(participantID, idx.byParticipant[participantID])
}
