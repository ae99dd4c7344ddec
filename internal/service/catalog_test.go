package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paddock-market/internal/domain"
)

func TestCatalogService_Constructors(t *testing.T) {
	svc := NewCatalogService(seedGrid(t), nil, discardLogger())

	listings, err := svc.Constructors(context.Background(), domain.SportMotoGP)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, int64(100), listings[0].Price)
	assert.Equal(t, 90.0, listings[0].EffectivePrice)
	assert.Equal(t, int64(90), listings[1].Price)
	assert.Equal(t, 55.0, listings[1].EffectivePrice)
}

func TestCatalogService_Races(t *testing.T) {
	st := seedGrid(t)
	_, err := st.CreateRace(context.Background(), domain.Race{ID: 20, Sport: domain.SportMotoGP, Round: 0, Name: "Test day", ScheduledAt: testNow.Add(-30 * 24 * time.Hour)})
	require.NoError(t, err)
	svc := NewCatalogService(st, nil, discardLogger())

	races, err := svc.Races(context.Background(), domain.SportMotoGP)
	require.NoError(t, err)
	require.Len(t, races, 3)
	assert.Equal(t, []int64{20, 21, 22}, []int64{races[0].ID, races[1].ID, races[2].ID})
}

func TestCatalogService_AdminOnly(t *testing.T) {
	svc := NewCatalogService(seedGrid(t), nil, discardLogger())
	ctx := context.Background()

	_, err := svc.CreateParticipant(ctx, visitor, domain.SportMotoGP, domain.CreateParticipantRequest{Name: "Cy"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.CreateRace(ctx, visitor, domain.SportMotoGP, domain.CreateRaceRequest{Round: 3, Name: "Mugello", ScheduledAt: testNow})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = svc.RescheduleRace(ctx, visitor, domain.SportMotoGP, 21, testNow)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.UpdateRider(ctx, visitor, domain.SportMotoGP, 1, domain.RiderPatch{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.ImportPoints(ctx, visitor, domain.PointsImport{Sport: domain.SportMotoGP, RaceID: 21, Points: []domain.PointsInput{{RiderID: 1}}})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCatalogService_CreateParticipantAndRace(t *testing.T) {
	svc := NewCatalogService(seedGrid(t), nil, discardLogger())
	ctx := context.Background()

	p, err := svc.CreateParticipant(ctx, admin, domain.SportMotoGP, domain.CreateParticipantRequest{Name: "Cy"})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, domain.SportMotoGP, p.Sport)

	_, err = svc.CreateParticipant(ctx, admin, domain.SportMotoGP, domain.CreateParticipantRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	race, err := svc.CreateRace(ctx, admin, domain.SportMotoGP, domain.CreateRaceRequest{Round: 3, Name: "Mugello", ScheduledAt: testNow.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, race.PriceAdjusted)
	assert.Equal(t, 3, race.Round)
}

func TestCatalogService_RescheduleKeepsProcessedFlag(t *testing.T) {
	st := seedGrid(t)
	ctx := context.Background()
	require.NoError(t, st.MarkRacesPriceAdjusted(ctx, domain.SportMotoGP, []int64{21}))
	svc := NewCatalogService(st, nil, discardLogger())

	later := testNow.Add(24 * time.Hour)
	require.NoError(t, svc.RescheduleRace(ctx, admin, domain.SportMotoGP, 21, later))
	assert.True(t, raceAdjusted(t, st, 21))

	err := svc.RescheduleRace(ctx, admin, domain.SportMotoGP, 99, later)
	assert.ErrorIs(t, err, domain.ErrRaceNotFound)
}

func TestCatalogService_UpdateRider(t *testing.T) {
	st := seedGrid(t)
	svc := NewCatalogService(st, nil, discardLogger())
	ctx := context.Background()

	price := int64(75)
	injured := domain.ConditionInjured
	rider, err := svc.UpdateRider(ctx, admin, domain.SportMotoGP, 2, domain.RiderPatch{Price: &price, Condition: &injured})
	require.NoError(t, err)
	assert.Equal(t, int64(75), rider.Price)
	assert.True(t, rider.Unavailable())
	assert.Equal(t, int64(75), riderPrices(t, st)[2])

	_, err = svc.UpdateRider(ctx, admin, domain.SportMotoGP, 99, domain.RiderPatch{Price: &price})
	assert.ErrorIs(t, err, domain.ErrRiderNotFound)

	negative := int64(-5)
	_, err = svc.UpdateRider(ctx, admin, domain.SportMotoGP, 2, domain.RiderPatch{Price: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCatalogService_ImportPoints(t *testing.T) {
	st := seedGrid(t)
	notifier := new(MockNotifier)
	notifier.On("Notify", kind(domain.NotificationStandings)).Once()
	scoring := NewScoringService(st, nil, standingsConfig, notifier, discardLogger())
	svc := NewCatalogService(st, scoring, discardLogger())
	ctx := context.Background()

	n, err := svc.ImportPoints(ctx, admin, domain.PointsImport{
		Sport:  domain.SportMotoGP,
		RaceID: 21,
		Points: []domain.PointsInput{
			{RiderID: 1, Main: 20, Sprint: 5},
			{RiderID: 99, Main: 12},
			{RiderID: 2, Main: 3},
			{RiderID: 2, Main: 10},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	points, err := st.ListRiderPoints(ctx, domain.SportMotoGP)
	require.NoError(t, err)
	assert.Equal(t, []domain.RiderRoundPoints{
		{RaceID: 21, RiderID: 1, Main: 20, Sprint: 5, Total: 25},
		{RaceID: 21, RiderID: 2, Main: 10, Total: 10},
	}, points)
	notifier.AssertExpectations(t)
}

func TestCatalogService_ImportPointsRejections(t *testing.T) {
	svc := NewCatalogService(seedGrid(t), nil, discardLogger())
	ctx := context.Background()

	_, err := svc.ImportPoints(ctx, admin, domain.PointsImport{Sport: domain.SportMotoGP, RaceID: 99, Points: []domain.PointsInput{{RiderID: 1}}})
	assert.ErrorIs(t, err, domain.ErrRaceNotFound)

	_, err = svc.ImportPoints(ctx, admin, domain.PointsImport{Sport: domain.SportMotoGP, RaceID: 21})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.ImportPoints(ctx, admin, domain.PointsImport{Sport: "nascar", RaceID: 21, Points: []domain.PointsInput{{RiderID: 1}}})
	assert.ErrorIs(t, err, domain.ErrUnknownSport)

	n, err := svc.ImportPoints(ctx, admin, domain.PointsImport{Sport: domain.SportMotoGP, RaceID: 21, Points: []domain.PointsInput{{RiderID: 77}}})
	require.NoError(t, err)
	assert.Zero(t, n)
}


func TestCatalogService_SeedKeepsLivePrices(t *testing.T) {
	st := seedGrid(t)
	svc := NewCatalogService(st, nil, discardLogger())
	ctx := context.Background()

	err := svc.Seed(ctx, admin, domain.SportMotoGP,
		[]domain.Constructor{{ID: 11, Name: "Monster Yamaha", Price: 500}, {ID: 13, Name: "KTM", Price: 70}},
		[]domain.Rider{{ID: 1, Name: "Rossi", TeamName: "Monster Yamaha", Price: 500}, {ID: 5, Name: "Binder", TeamName: "KTM", Price: 40}},
	)
	require.NoError(t, err)

	assert.Equal(t, map[int64]int64{11: 100, 12: 90, 13: 70}, constructorPrices(t, st))
	prices := riderPrices(t, st)
	assert.Equal(t, int64(100), prices[1])
	assert.Equal(t, int64(40), prices[5])

	riders, err := svc.Riders(ctx, domain.SportMotoGP)
	require.NoError(t, err)
	assert.Equal(t, "Monster Yamaha", riders[0].TeamName)

	assert.ErrorIs(t, svc.Seed(ctx, visitor, domain.SportMotoGP, nil, nil), domain.ErrForbidden)
}

// mapCache keeps standings in memory so tests can observe stale reads
type mapCache struct {
	tables map[string][]domain.StandingsEntry
}

func newMapCache() *mapCache {
	return &mapCache{tables: make(map[string][]domain.StandingsEntry)}
}

func (c *mapCache) key(sport domain.Sport, view string) string {
	return string(sport) + ":" + view
}

func (c *mapCache) GetStandings(_ context.Context, sport domain.Sport, view string, limit int) ([]domain.StandingsEntry, error) {
	entries, ok := c.tables[c.key(sport, view)]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (c *mapCache) SetStandings(_ context.Context, sport domain.Sport, view string, entries []domain.StandingsEntry, _ time.Duration) error {
	c.tables[c.key(sport, view)] = entries
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, sport domain.Sport) error {
	for k := range c.tables {
		if strings.HasPrefix(k, string(sport)+":") {
			delete(c.tables, k)
		}
	}
	return nil
}

func standingNames(entries []domain.StandingsEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestCatalogService_AdminWritesRefreshStandings(t *testing.T) {
	ctx := context.Background()
	notifier := new(MockNotifier)
	notifier.On("Notify", kind(domain.NotificationStandings))
	st := seedScores(t)
	scoring := NewScoringService(st, newMapCache(), standingsConfig, notifier, discardLogger())
	svc := NewCatalogService(st, scoring, discardLogger())

	before, err := scoring.Standings(ctx, domain.SportMotoGP, "21", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana", "Bo"}, standingNames(before))

	// rider 1 now counts for Honda: Ana 25 + 10 + 10 / 2, Bo 16 + 13 + (25 + 16) / 2
	_, err = svc.UpdateRider(ctx, admin, domain.SportMotoGP, 1, domain.RiderPatch{ConstructorID: int64p(12)})
	require.NoError(t, err)
	_, err = svc.CreateParticipant(ctx, admin, domain.SportMotoGP, domain.CreateParticipantRequest{Name: "Cy"})
	require.NoError(t, err)

	after, err := scoring.Standings(ctx, domain.SportMotoGP, "21", 0)
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, []string{"Bo", "Ana", "Cy"}, standingNames(after))
	assert.Equal(t, 49.5, after[0].Score)
	assert.Equal(t, 40.0, after[1].Score)

	notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestCatalogService_SeedRefreshesStandings(t *testing.T) {
	cache := new(MockCache)
	cache.On("Invalidate", mock.Anything, domain.SportMotoGP).Return(nil).Once()
	notifier := new(MockNotifier)
	notifier.On("Notify", kind(domain.NotificationStandings)).Once()
	st := seedGrid(t)
	svc := NewCatalogService(st, NewScoringService(st, cache, standingsConfig, notifier, discardLogger()), discardLogger())

	err := svc.Seed(context.Background(), admin, domain.SportMotoGP, nil, []domain.Rider{{ID: 5, Name: "Vinales", Price: 70}})
	require.NoError(t, err)

	cache.AssertExpectations(t)
	notifier.AssertExpectations(t)
}
