package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/memstore"
)

var (
	testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	admin   = domain.Actor{ID: "tester", Admin: true}
	visitor = domain.Actor{ID: "visitor"}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(n domain.Notification) {
	m.Called(n)
}

func kind(k domain.NotificationKind) interface{} {
	return mock.MatchedBy(func(n domain.Notification) bool { return n.Kind == k })
}

func int64p(v int64) *int64 { return &v }

// seedGrid builds a MotoGP catalog with one closed race and one open race.
//
//	riders:       1 (100, ctor 11), 2 (80, ctor 11), 3 (60, ctor 12), 4 (50, ctor 12)
//	constructors: 11 (100), 12 (90)
//	races:        21 closed two days ago, 22 in a week
//	participants: 31 "Ana" and 32 "Bo", both fielding riders 1 and 2 with ctor 11 for race 21
func seedGrid(t *testing.T) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()

	st.AddRider(domain.Rider{ID: 1, Sport: domain.SportMotoGP, Name: "Rossi", TeamName: "Yamaha", ConstructorID: int64p(11), Price: 100})
	st.AddRider(domain.Rider{ID: 2, Sport: domain.SportMotoGP, Name: "Lorenzo", TeamName: "Yamaha", ConstructorID: int64p(11), Price: 80})
	st.AddRider(domain.Rider{ID: 3, Sport: domain.SportMotoGP, Name: "Marquez", TeamName: "Honda", ConstructorID: int64p(12), Price: 60})
	st.AddRider(domain.Rider{ID: 4, Sport: domain.SportMotoGP, Name: "Pedrosa", TeamName: "Honda", ConstructorID: int64p(12), Price: 50})
	st.AddConstructor(domain.Constructor{ID: 11, Sport: domain.SportMotoGP, Name: "Yamaha", Price: 100})
	st.AddConstructor(domain.Constructor{ID: 12, Sport: domain.SportMotoGP, Name: "Honda", Price: 90})

	_, err := st.CreateRace(ctx, domain.Race{ID: 21, Sport: domain.SportMotoGP, Round: 1, Name: "Qatar", ScheduledAt: testNow.Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = st.CreateRace(ctx, domain.Race{ID: 22, Sport: domain.SportMotoGP, Round: 2, Name: "Jerez", ScheduledAt: testNow.Add(7 * 24 * time.Hour)})
	require.NoError(t, err)

	for _, p := range []domain.Participant{
		{ID: 31, Sport: domain.SportMotoGP, Name: "Ana"},
		{ID: 32, Sport: domain.SportMotoGP, Name: "Bo"},
	} {
		_, err := st.CreateParticipant(ctx, p)
		require.NoError(t, err)
	}
	for i, pid := range []int64{31, 32} {
		_, err := st.InsertSnapshot(ctx, domain.TeamSnapshot{
			ID:            int64(41 + i),
			Sport:         domain.SportMotoGP,
			ParticipantID: pid,
			RaceID:        21,
			RiderIDs:      []int64{1, 2},
			ConstructorID: int64p(11),
			CreatedAt:     testNow.Add(-72 * time.Hour),
		})
		require.NoError(t, err)
	}
	return st
}

func riderPrices(t *testing.T, st *memstore.Store) map[int64]int64 {
	t.Helper()
	riders, err := st.ListRiders(context.Background(), domain.SportMotoGP)
	require.NoError(t, err)
	out := make(map[int64]int64, len(riders))
	for _, r := range riders {
		out[r.ID] = r.Price
	}
	return out
}

func constructorPrices(t *testing.T, st *memstore.Store) map[int64]int64 {
	t.Helper()
	ctors, err := st.ListConstructors(context.Background(), domain.SportMotoGP)
	require.NoError(t, err)
	out := make(map[int64]int64, len(ctors))
	for _, c := range ctors {
		out[c.ID] = c.Price
	}
	return out
}

func raceAdjusted(t *testing.T, st *memstore.Store, id int64) bool {
	t.Helper()
	races, err := st.ListRaces(context.Background(), domain.SportMotoGP)
	require.NoError(t, err)
	for _, r := range races {
		if r.ID == id {
			return r.PriceAdjusted
		}
	}
	t.Fatalf("race %d not found", id)
	return false
}
