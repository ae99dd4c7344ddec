package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddock-market/internal/domain"
)

func TestStore_PriceBatchesAreAllOrNothing(t *testing.T) {
	st := New()
	ctx := context.Background()
	st.AddRider(domain.Rider{ID: 1, Sport: domain.SportMotoGP, Price: 100})
	st.AddRider(domain.Rider{ID: 2, Sport: domain.SportF1, Price: 100})

	err := st.UpdateRiderPrices(ctx, domain.SportMotoGP, []domain.PriceChange{
		{ID: 1, OldPrice: 100, NewPrice: 130},
		{ID: 2, OldPrice: 100, NewPrice: 70},
	})
	assert.ErrorIs(t, err, domain.ErrRiderNotFound)

	riders, err := st.ListRiders(ctx, domain.SportMotoGP)
	require.NoError(t, err)
	require.Len(t, riders, 1)
	assert.Equal(t, int64(100), riders[0].Price)
	assert.Equal(t, int64(100), riders[0].InitialPrice)
}

func TestStore_InsertSnapshotTracksCurrentRoster(t *testing.T) {
	st := New()
	ctx := context.Background()

	_, err := st.InsertSnapshot(ctx, domain.TeamSnapshot{ParticipantID: 5})
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

	p, err := st.CreateParticipant(ctx, domain.Participant{Sport: domain.SportF1, Name: "Kimi"})
	require.NoError(t, err)

	riders := []int64{7, 8}
	snap, err := st.InsertSnapshot(ctx, domain.TeamSnapshot{Sport: domain.SportF1, ParticipantID: p.ID, RaceID: 3, RiderIDs: riders})
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, snap.ID)
	assert.False(t, snap.CreatedAt.IsZero())

	riders[0] = 99
	participants, err := st.ListParticipants(ctx, domain.SportF1)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, participants[0].RiderIDs)
}

func TestStore_RaceFlagsAndSchedule(t *testing.T) {
	st := New()
	ctx := context.Background()
	race, err := st.CreateRace(ctx, domain.Race{Sport: domain.SportMotoGP, Round: 1, ScheduledAt: time.Unix(0, 0)})
	require.NoError(t, err)

	require.NoError(t, st.MarkRacesPriceAdjusted(ctx, domain.SportMotoGP, []int64{race.ID}))
	assert.ErrorIs(t, st.MarkRacesPriceAdjusted(ctx, domain.SportF1, []int64{race.ID}), domain.ErrRaceNotFound)

	at := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpdateRaceSchedule(ctx, domain.SportMotoGP, race.ID, at))

	races, err := st.ListRaces(ctx, domain.SportMotoGP)
	require.NoError(t, err)
	require.Len(t, races, 1)
	assert.True(t, races[0].PriceAdjusted)
	assert.Equal(t, at, races[0].ScheduledAt)
}
