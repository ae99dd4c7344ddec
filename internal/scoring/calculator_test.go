package scoring

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddock-market/internal/domain"
)

func ptr(v int64) *int64 { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var t0 = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

// fixture: P (id 1) fields A,B,C,D + K for race 1. K's riders are A and E.
func fixture() ([]domain.TeamSnapshot, []domain.RiderRoundPoints, []domain.Rider, []domain.Constructor) {
	riders := []domain.Rider{
		{ID: 1, Name: "A", ConstructorID: ptr(10)},
		{ID: 2, Name: "B", TeamName: "Other"},
		{ID: 3, Name: "C", TeamName: "Other"},
		{ID: 4, Name: "D", TeamName: "Other"},
		{ID: 5, Name: "E", TeamName: "Factory K"},
		{ID: 6, Name: "F", ConstructorID: ptr(10)},
	}
	constructors := []domain.Constructor{
		{ID: 10, Name: "Factory K"},
		{ID: 11, Name: "Other"},
	}
	snapshots := []domain.TeamSnapshot{
		{ID: 1, ParticipantID: 1, RaceID: 1, RiderIDs: []int64{1, 2, 3, 4}, ConstructorID: ptr(10), CreatedAt: t0},
	}
	points := []domain.RiderRoundPoints{
		{RaceID: 1, RiderID: 1, Total: 25, Main: 25},
		{RaceID: 1, RiderID: 2, Total: 10, Main: 7, Sprint: 3},
		{RaceID: 1, RiderID: 5, Total: 18, Main: 16, Sprint: 2},
		{RaceID: 1, RiderID: 6, Total: 4, Main: 4},
	}
	return snapshots, points, riders, constructors
}

func TestScoreBreakdown_ReferenceExample(t *testing.T) {
	snapshots, points, riders, constructors := fixture()

	b := ScoreBreakdown(1, 1, snapshots, points, riders, constructors)

	assert.True(t, b.Total.Equal(dec("56.5")), "total = %s", b.Total)
	assert.Equal(t, int64(57), b.Rounded)
	require.NotNil(t, b.Constructor)
	assert.True(t, b.Constructor.Score.Equal(dec("21.5")))
	require.Len(t, b.Constructor.TopRiders, 2)
	assert.Equal(t, int64(1), b.Constructor.TopRiders[0].RiderID)
	assert.Equal(t, int64(5), b.Constructor.TopRiders[1].RiderID)
	assert.Len(t, b.Riders, 4)
	assert.True(t, b.Riders[1].Sprint.Equal(dec("3")))
	assert.Equal(t, "25 + 10 + 0 + 0 + (25 + 18) / 2 = 56.5", b.Formula)
}

func TestScoreBreakdown_NoSnapshotScoresZero(t *testing.T) {
	snapshots, points, riders, constructors := fixture()

	b := ScoreBreakdown(1, 2, snapshots, points, riders, constructors)

	assert.True(t, b.Total.IsZero())
	assert.Empty(t, b.Riders)
	assert.Nil(t, b.Constructor)
	assert.Equal(t, "0", b.Formula)
}

func TestConstructorRaceScore(t *testing.T) {
	constructors := []domain.Constructor{{ID: 10, Name: "K"}}

	testCases := []struct {
		name     string
		riders   []domain.Rider
		points   []domain.RiderRoundPoints
		expected string
	}{
		{
			name:     "two scoring riders",
			riders:   []domain.Rider{{ID: 1, ConstructorID: ptr(10)}, {ID: 2, ConstructorID: ptr(10)}},
			points:   []domain.RiderRoundPoints{{RaceID: 1, RiderID: 1, Total: 20}, {RaceID: 1, RiderID: 2, Total: 11}},
			expected: "15.5",
		},
		{
			name:     "single scoring rider is halved",
			riders:   []domain.Rider{{ID: 1, ConstructorID: ptr(10)}, {ID: 2, ConstructorID: ptr(10)}},
			points:   []domain.RiderRoundPoints{{RaceID: 1, RiderID: 1, Total: 25}},
			expected: "12.5",
		},
		{
			name:     "only the best two of three count",
			riders:   []domain.Rider{{ID: 1, ConstructorID: ptr(10)}, {ID: 2, ConstructorID: ptr(10)}, {ID: 3, TeamName: "K"}},
			points:   []domain.RiderRoundPoints{{RaceID: 1, RiderID: 1, Total: 5}, {RaceID: 1, RiderID: 2, Total: 20}, {RaceID: 1, RiderID: 3, Total: 16}},
			expected: "18",
		},
		{
			name:     "no affiliated riders",
			riders:   []domain.Rider{{ID: 1, TeamName: "Elsewhere"}},
			points:   []domain.RiderRoundPoints{{RaceID: 1, RiderID: 1, Total: 25}},
			expected: "0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calc := NewCalculator(nil, tc.points, tc.riders, constructors)
			cs := calc.ConstructorRaceScore(10, 1)
			require.NotNil(t, cs)
			assert.True(t, cs.Score.Equal(dec(tc.expected)), "score = %s, want %s", cs.Score, tc.expected)

			best := decimal.Zero
			for _, p := range tc.points {
				if v := decimal.NewFromFloat(p.Total); v.GreaterThan(best) {
					best = v
				}
			}
			assert.True(t, cs.Score.LessThanOrEqual(best))
		})
	}

	assert.Nil(t, NewCalculator(nil, nil, nil, constructors).ConstructorRaceScore(99, 1))
}

func TestRaceScore_MissingCatalogEntriesAreSkipped(t *testing.T) {
	snapshots := []domain.TeamSnapshot{
		{ID: 1, ParticipantID: 1, RaceID: 1, RiderIDs: []int64{1, 404}, ConstructorID: ptr(505), CreatedAt: t0},
	}
	riders := []domain.Rider{{ID: 1, Name: "A"}}
	points := []domain.RiderRoundPoints{{RaceID: 1, RiderID: 1, Total: 9}, {RaceID: 1, RiderID: 404, Total: 50}}

	b := ScoreBreakdown(1, 1, snapshots, points, riders, nil)

	assert.True(t, b.Total.Equal(dec("9")))
	assert.Len(t, b.Riders, 1)
	assert.Nil(t, b.Constructor)
}

func TestGeneralScore_UsesRosterInEffectPerRace(t *testing.T) {
	riders := []domain.Rider{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}
	races := []domain.Race{{ID: 1, Round: 1}, {ID: 2, Round: 2}, {ID: 3, Round: 3}}
	snapshots := []domain.TeamSnapshot{
		{ID: 1, ParticipantID: 1, RaceID: 1, RiderIDs: []int64{1}, CreatedAt: t0},
		{ID: 2, ParticipantID: 1, RaceID: 2, RiderIDs: []int64{2}, CreatedAt: t0.Add(time.Hour)},
	}
	points := []domain.RiderRoundPoints{
		{RaceID: 1, RiderID: 1, Total: 10.5},
		{RaceID: 1, RiderID: 2, Total: 100},
		{RaceID: 2, RiderID: 1, Total: 100},
		{RaceID: 2, RiderID: 2, Total: 7},
		{RaceID: 3, RiderID: 2, Total: 30},
	}

	calc := NewCalculator(snapshots, points, riders, nil)
	g := calc.GeneralScore(1, races)

	require.Len(t, g.Races, 3)
	sum := decimal.Zero
	for _, b := range g.Races {
		sum = sum.Add(calc.RaceScore(1, b.RaceID).Total)
	}
	assert.True(t, g.Total.Equal(sum))
	assert.True(t, g.Total.Equal(dec("17.5")))
	assert.Equal(t, int64(18), g.Rounded)
	assert.Equal(t, []int64{2}, calc.CurrentTeam(1).RiderIDs)
}

func TestRound(t *testing.T) {
	assert.Equal(t, int64(57), Round(dec("56.5")))
	assert.Equal(t, int64(56), Round(dec("56.49")))
	assert.Equal(t, int64(0), Round(decimal.Zero))
}
