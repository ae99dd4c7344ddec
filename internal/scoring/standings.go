package scoring

import (
	"sort"
	"strconv"

	"github.com/paddock-market/internal/domain"
)

// Standings computes the ranked table of a view: a race id or the general view.
func (c *Calculator) Standings(view string, participants []domain.Participant, races []domain.Race) ([]domain.StandingsEntry, error) {
	entries := make([]domain.StandingsEntry, 0, len(participants))

	if view == domain.GeneralView {
		for _, p := range participants {
			g := c.GeneralScore(p.ID, races)
			entries = append(entries, domain.StandingsEntry{
				ParticipantID: p.ID,
				Name:          p.Name,
				Score:         g.Total.InexactFloat64(),
				Points:        g.Rounded,
			})
		}
		return Rank(entries), nil
	}

	raceID, err := strconv.ParseInt(view, 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidRequest
	}
	found := false
	for _, r := range races {
		if r.ID == raceID {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrRaceNotFound
	}

	for _, p := range participants {
		b := c.RaceScore(p.ID, raceID)
		entries = append(entries, domain.StandingsEntry{
			ParticipantID: p.ID,
			Name:          p.Name,
			Score:         b.Total.InexactFloat64(),
			Points:        b.Rounded,
		})
	}
	return Rank(entries), nil
}

// Rank orders entries by rounded points, then raw score, then name, and
// assigns competition ranks: equal points share a rank and the next rank skips.
func Rank(entries []domain.StandingsEntry) []domain.StandingsEntry {
	out := append([]domain.StandingsEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	for i := range out {
		if i > 0 && out[i].Points == out[i-1].Points {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = int64(i + 1)
	}
	return out
}
