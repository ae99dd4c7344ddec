// Package scoring turns raw rider points into participant scores.
package scoring

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/roster"
)

var two = decimal.NewFromInt(2)

// RiderScore is the contribution of one rider
type RiderScore struct {
	RiderID int64           `json:"rider_id"`
	Name    string          `json:"name"`
	Total   decimal.Decimal `json:"total"`
	Main    decimal.Decimal `json:"main"`
	Sprint  decimal.Decimal `json:"sprint"`
}

// ConstructorScore is the constructor contribution: the average of its two
// best affiliated riders for the race.
type ConstructorScore struct {
	ConstructorID int64           `json:"constructor_id"`
	Name          string          `json:"name"`
	TopRiders     []RiderScore    `json:"top_riders"`
	Score         decimal.Decimal `json:"score"`
}

// Breakdown is the score of a participant for one race
type Breakdown struct {
	ParticipantID int64             `json:"participant_id"`
	RaceID        int64             `json:"race_id"`
	Riders        []RiderScore      `json:"riders"`
	Constructor   *ConstructorScore `json:"constructor,omitempty"`
	Total         decimal.Decimal   `json:"total"`
	Rounded       int64             `json:"rounded"`
	Formula       string            `json:"formula"`
}

// General is the season score: every race resolved with its own roster
type General struct {
	ParticipantID int64           `json:"participant_id"`
	Races         []Breakdown     `json:"races"`
	Total         decimal.Decimal `json:"total"`
	Rounded       int64           `json:"rounded"`
}

type pointsKey struct {
	raceID  int64
	riderID int64
}

// Calculator holds indexed read-only inputs. It keeps no state between calls.
type Calculator struct {
	snapshots    *roster.Index
	points       map[pointsKey]domain.RiderRoundPoints
	riders       map[int64]domain.Rider
	riderList    []domain.Rider
	constructors map[int64]domain.Constructor
}

// NewCalculator indexes the inputs of a scoring pass
func NewCalculator(
	snapshots []domain.TeamSnapshot,
	points []domain.RiderRoundPoints,
	riders []domain.Rider,
	constructors []domain.Constructor,
) *Calculator {
	c := &Calculator{
		snapshots:    roster.NewIndex(snapshots),
		points:       make(map[pointsKey]domain.RiderRoundPoints, len(points)),
		riders:       make(map[int64]domain.Rider, len(riders)),
		riderList:    riders,
		constructors: make(map[int64]domain.Constructor, len(constructors)),
	}
	for _, p := range points {
		c.points[pointsKey{raceID: p.RaceID, riderID: p.RiderID}] = p
	}
	for _, r := range riders {
		c.riders[r.ID] = r
	}
	for _, k := range constructors {
		c.constructors[k.ID] = k
	}
	return c
}

// ScoreBreakdown computes a single race score from raw collections
func ScoreBreakdown(
	participantID, raceID int64,
	snapshots []domain.TeamSnapshot,
	points []domain.RiderRoundPoints,
	riders []domain.Rider,
	constructors []domain.Constructor,
) Breakdown {
	return NewCalculator(snapshots, points, riders, constructors).RaceScore(participantID, raceID)
}

// RaceScore computes the breakdown of a participant for a race. Riders or
// constructors missing from the catalog contribute nothing.
func (c *Calculator) RaceScore(participantID, raceID int64) Breakdown {
	team := c.snapshots.Team(participantID, raceID)
	b := Breakdown{
		ParticipantID: participantID,
		RaceID:        raceID,
		Riders:        make([]RiderScore, 0, len(team.RiderIDs)),
		Total:         decimal.Zero,
	}

	terms := make([]string, 0, len(team.RiderIDs)+1)
	for _, id := range team.RiderIDs {
		rider, ok := c.riders[id]
		if !ok {
			continue
		}
		rs := c.riderScore(rider, raceID)
		b.Riders = append(b.Riders, rs)
		b.Total = b.Total.Add(rs.Total)
		terms = append(terms, rs.Total.String())
	}

	if team.ConstructorID != nil {
		if cs := c.ConstructorRaceScore(*team.ConstructorID, raceID); cs != nil {
			b.Constructor = cs
			b.Total = b.Total.Add(cs.Score)
			terms = append(terms, constructorTerm(cs))
		}
	}

	b.Rounded = Round(b.Total)
	b.Formula = formula(terms, b.Total)
	return b
}

// ConstructorRaceScore returns (top1 + top2) / 2 over the riders currently
// affiliated with the constructor. Nil when the constructor is unknown.
func (c *Calculator) ConstructorRaceScore(constructorID, raceID int64) *ConstructorScore {
	ctor, ok := c.constructors[constructorID]
	if !ok {
		return nil
	}

	affiliated := roster.AffiliatedRiders(ctor, c.riderList)
	scores := make([]RiderScore, 0, len(affiliated))
	for _, r := range affiliated {
		scores = append(scores, c.riderScore(r, raceID))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if !scores[i].Total.Equal(scores[j].Total) {
			return scores[i].Total.GreaterThan(scores[j].Total)
		}
		return scores[i].RiderID < scores[j].RiderID
	})
	if len(scores) > 2 {
		scores = scores[:2]
	}

	sum := decimal.Zero
	for _, s := range scores {
		sum = sum.Add(s.Total)
	}

	return &ConstructorScore{
		ConstructorID: ctor.ID,
		Name:          ctor.Name,
		TopRiders:     scores,
		Score:         sum.Div(two),
	}
}

// GeneralScore sums the independently resolved race scores
func (c *Calculator) GeneralScore(participantID int64, races []domain.Race) General {
	g := General{
		ParticipantID: participantID,
		Races:         make([]Breakdown, 0, len(races)),
		Total:         decimal.Zero,
	}
	for _, race := range races {
		b := c.RaceScore(participantID, race.ID)
		g.Races = append(g.Races, b)
		g.Total = g.Total.Add(b.Total)
		g.Rounded += b.Rounded
	}
	return g
}

// CurrentTeam resolves the most recent roster, ignoring races
func (c *Calculator) CurrentTeam(participantID int64) roster.Team {
	return c.snapshots.Latest(participantID)
}

func (c *Calculator) riderScore(r domain.Rider, raceID int64) RiderScore {
	p := c.points[pointsKey{raceID: raceID, riderID: r.ID}]
	return RiderScore{
		RiderID: r.ID,
		Name:    r.Name,
		Total:   decimal.NewFromFloat(p.Total),
		Main:    decimal.NewFromFloat(p.Main),
		Sprint:  decimal.NewFromFloat(p.Sprint),
	}
}

// Round converts a raw score to display points, half away from zero
func Round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func constructorTerm(cs *ConstructorScore) string {
	pair := []string{"0", "0"}
	for i, r := range cs.TopRiders {
		pair[i] = r.Total.String()
	}
	return "(" + pair[0] + " + " + pair[1] + ") / 2"
}

func formula(terms []string, total decimal.Decimal) string {
	if len(terms) == 0 {
		return "0"
	}
	return strings.Join(terms, " + ") + " = " + total.String()
}
