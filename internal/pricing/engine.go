package pricing

import (
	"sort"

	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/roster"
)

// Input is everything a run needs. Races are the unprocessed closed races;
// Run orders them chronologically.
type Input struct {
	Races        []domain.Race
	Participants []domain.Participant
	Snapshots    []domain.TeamSnapshot
	Riders       []domain.Rider
	Constructors []domain.Constructor
}

// Adjustment is the outcome for one entity in one race
type Adjustment struct {
	ID          int64   `json:"id"`
	Selections  int     `json:"selections"`
	Percentage  float64 `json:"percentage"`
	Tier        Tier    `json:"tier,omitempty"`
	Delta       int64   `json:"delta"`
	PriceBefore int64   `json:"price_before"`
	PriceAfter  int64   `json:"price_after"`
}

// RaceReport describes what a single race did to prices
type RaceReport struct {
	RaceID                   int64        `json:"race_id"`
	Round                    int          `json:"round"`
	Qualifying               int          `json:"qualifying"`
	RiderIncrease            int64        `json:"rider_increase"`
	RiderRedistributed       int64        `json:"rider_redistributed"`
	ConstructorIncrease      int64        `json:"constructor_increase"`
	ConstructorRedistributed int64        `json:"constructor_redistributed"`
	Riders                   []Adjustment `json:"riders"`
	Constructors             []Adjustment `json:"constructors"`
}

// Result is the outcome of a run. Changes only list entities whose final
// price differs from the stored price.
type Result struct {
	RiderPrices        map[int64]int64      `json:"rider_prices"`
	ConstructorPrices  map[int64]int64      `json:"constructor_prices"`
	RiderChanges       []domain.PriceChange `json:"rider_changes"`
	ConstructorChanges []domain.PriceChange `json:"constructor_changes"`
	ProcessedRaceIDs   []int64              `json:"processed_race_ids"`
	Reports            []RaceReport         `json:"reports"`
}

// SortRaces orders races by scheduled time, then round, then id
func SortRaces(races []domain.Race) []domain.Race {
	out := append([]domain.Race(nil), races...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Run processes the races in chronological order. Each race starts from the
// prices left by the previous one.
func Run(in Input) Result {
	riderPrices := make(map[int64]int64, len(in.Riders))
	for _, r := range in.Riders {
		riderPrices[r.ID] = r.Price
	}
	ctorPrices := make(map[int64]int64, len(in.Constructors))
	for _, c := range in.Constructors {
		ctorPrices[c.ID] = c.Price
	}

	idx := roster.NewIndex(in.Snapshots)
	res := Result{
		RiderPrices:       riderPrices,
		ConstructorPrices: ctorPrices,
	}

	for _, race := range SortRaces(in.Races) {
		report := adjustRace(race, in, idx, riderPrices, ctorPrices)
		res.Reports = append(res.Reports, report)
		res.ProcessedRaceIDs = append(res.ProcessedRaceIDs, race.ID)
	}

	for _, r := range in.Riders {
		if p := riderPrices[r.ID]; p != r.Price {
			res.RiderChanges = append(res.RiderChanges, domain.PriceChange{ID: r.ID, OldPrice: r.Price, NewPrice: p})
		}
	}
	for _, c := range in.Constructors {
		if p := ctorPrices[c.ID]; p != c.Price {
			res.ConstructorChanges = append(res.ConstructorChanges, domain.PriceChange{ID: c.ID, OldPrice: c.Price, NewPrice: p})
		}
	}
	sortChanges(res.RiderChanges)
	sortChanges(res.ConstructorChanges)
	return res
}

func adjustRace(
	race domain.Race,
	in Input,
	idx *roster.Index,
	riderPrices, ctorPrices map[int64]int64,
) RaceReport {
	riderPicks := make(map[int64]int)
	ctorPicks := make(map[int64]int)
	qualifying := 0

	for _, p := range in.Participants {
		team := idx.Team(p.ID, race.ID)
		if !team.Complete() {
			continue
		}
		qualifying++
		seen := make(map[int64]bool, len(team.RiderIDs))
		for _, id := range team.RiderIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			riderPicks[id]++
		}
		ctorPicks[*team.ConstructorID]++
	}

	report := RaceReport{RaceID: race.ID, Round: race.Round, Qualifying: qualifying}

	// Riders
	riderDeltas := make(map[int64]int64)
	var unpopular, differential []candidate
	for _, r := range in.Riders {
		if r.Unavailable() {
			continue
		}
		tier := RiderTier(riderPicks[r.ID], qualifying)
		switch tier {
		case TierUnpopular:
			unpopular = append(unpopular, candidate{id: r.ID, price: riderPrices[r.ID]})
		case TierDifferential:
			differential = append(differential, candidate{id: r.ID, price: riderPrices[r.ID]})
		default:
			riderDeltas[r.ID] += tier.Increase()
			report.RiderIncrease += tier.Increase()
		}
	}
	pool := unpopular
	if len(pool) == 0 {
		pool = differential
	}
	cuts, total := redistribute(pool, report.RiderIncrease)
	for id, cut := range cuts {
		riderDeltas[id] -= cut
	}
	report.RiderRedistributed = total

	for _, r := range in.Riders {
		adj := Adjustment{
			ID:          r.ID,
			Selections:  riderPicks[r.ID],
			Percentage:  Percentage(riderPicks[r.ID], qualifying),
			PriceBefore: riderPrices[r.ID],
		}
		if r.Unavailable() {
			adj.Tier = TierFrozen
		} else {
			adj.Tier = RiderTier(adj.Selections, qualifying)
			adj.Delta = riderDeltas[r.ID]
		}
		riderPrices[r.ID] = floor(adj.PriceBefore + adj.Delta)
		adj.PriceAfter = riderPrices[r.ID]
		report.Riders = append(report.Riders, adj)
	}

	// Constructors
	ctorDeltas := make(map[int64]int64)
	var ctorPool []candidate
	for _, c := range in.Constructors {
		tier := ConstructorTier(ctorPicks[c.ID], qualifying)
		if tier == TierUnpopular {
			ctorPool = append(ctorPool, candidate{id: c.ID, price: ctorPrices[c.ID]})
			continue
		}
		ctorDeltas[c.ID] += tier.Increase()
		report.ConstructorIncrease += tier.Increase()
	}
	cuts, total = redistribute(ctorPool, report.ConstructorIncrease)
	for id, cut := range cuts {
		ctorDeltas[id] -= cut
	}
	report.ConstructorRedistributed = total

	for _, c := range in.Constructors {
		adj := Adjustment{
			ID:          c.ID,
			Selections:  ctorPicks[c.ID],
			Percentage:  Percentage(ctorPicks[c.ID], qualifying),
			Tier:        ConstructorTier(ctorPicks[c.ID], qualifying),
			Delta:       ctorDeltas[c.ID],
			PriceBefore: ctorPrices[c.ID],
		}
		ctorPrices[c.ID] = floor(adj.PriceBefore + adj.Delta)
		adj.PriceAfter = ctorPrices[c.ID]
		report.Constructors = append(report.Constructors, adj)
	}

	return report
}

func floor(price int64) int64 {
	if price < 0 {
		return 0
	}
	return price
}

func sortChanges(changes []domain.PriceChange) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
}
