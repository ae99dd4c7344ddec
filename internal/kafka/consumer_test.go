package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paddock-market/internal/config"
	"github.com/paddock-market/internal/domain"
)

type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) ImportPoints(ctx context.Context, actor domain.Actor, imp domain.PointsImport) (int, error) {
	args := m.Called(ctx, actor, imp)
	return args.Int(0), args.Error(1)
}

func testConsumer(importer PointsImporter) *Consumer {
	cfg := &config.KafkaConfig{RetryAttempts: 3, RetryDelay: time.Millisecond, BatchSize: 10, BatchTimeout: time.Second}
	return newConsumer(cfg, importer, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDecodeImport(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		wantErr error
		check   func(t *testing.T, imp domain.PointsImport)
	}{
		{
			name: "lenient values",
			body: `{"sport":"MotoGP","race_id":4,"points":[{"rider_id":7,"main":"12,5","sprint":3},{"rider_id":8,"main":"dnf"}]}`,
			check: func(t *testing.T, imp domain.PointsImport) {
				assert.Equal(t, domain.SportMotoGP, imp.Sport)
				require.Len(t, imp.Points, 2)
				assert.Equal(t, domain.PointsValue(12.5), imp.Points[0].Main)
				assert.Equal(t, domain.PointsValue(0), imp.Points[1].Main)
			},
		},
		{
			name:    "not json",
			body:    `race 4`,
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "unknown sport",
			body:    `{"sport":"wec","race_id":4,"points":[{"rider_id":7}]}`,
			wantErr: domain.ErrUnknownSport,
		},
		{
			name:    "missing race",
			body:    `{"sport":"f1","points":[{"rider_id":7}]}`,
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "empty points",
			body:    `{"sport":"f1","race_id":4,"points":[]}`,
			wantErr: domain.ErrInvalidRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			imp, err := DecodeImport([]byte(tc.body))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, imp)
		})
	}
}

func TestMergeImports(t *testing.T) {
	merged := MergeImports([]domain.PointsImport{
		{Sport: domain.SportMotoGP, RaceID: 4, Points: []domain.PointsInput{{RiderID: 1, Main: 25}}},
		{Sport: domain.SportF1, RaceID: 4, Points: []domain.PointsInput{{RiderID: 9, Main: 18}}},
		{Sport: domain.SportMotoGP, RaceID: 4, Points: []domain.PointsInput{{RiderID: 2, Main: 20}}},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, domain.SportMotoGP, merged[0].Sport)
	assert.Len(t, merged[0].Points, 2)
	assert.Equal(t, domain.SportF1, merged[1].Sport)
}

func TestConsumer_ProcessRetriesTransientFailures(t *testing.T) {
	importer := new(MockImporter)
	imp := domain.PointsImport{Sport: domain.SportMotoGP, RaceID: 4, Points: []domain.PointsInput{{RiderID: 1, Main: 25}}}
	importer.On("ImportPoints", mock.Anything, domain.SystemActor, imp).Return(0, errors.New("connection refused")).Twice()
	importer.On("ImportPoints", mock.Anything, domain.SystemActor, imp).Return(1, nil).Once()

	failed := testConsumer(importer).process(context.Background(), []domain.PointsImport{imp})

	importer.AssertNumberOfCalls(t, "ImportPoints", 3)
	assert.Empty(t, failed)
}

func TestConsumer_ProcessDropsRejectedImports(t *testing.T) {
	importer := new(MockImporter)
	imp := domain.PointsImport{Sport: domain.SportMotoGP, RaceID: 99, Points: []domain.PointsInput{{RiderID: 1}}}
	importer.On("ImportPoints", mock.Anything, domain.SystemActor, imp).Return(0, domain.ErrRaceNotFound)

	failed := testConsumer(importer).process(context.Background(), []domain.PointsImport{imp})

	importer.AssertNumberOfCalls(t, "ImportPoints", 1)
	assert.Empty(t, failed)
}

func TestConsumer_ProcessGivesUpAfterRetries(t *testing.T) {
	importer := new(MockImporter)
	importer.On("ImportPoints", mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("timeout"))

	failed := testConsumer(importer).process(context.Background(), []domain.PointsImport{
		{Sport: domain.SportF1, RaceID: 2, Points: []domain.PointsInput{{RiderID: 1}}},
	})

	importer.AssertNumberOfCalls(t, "ImportPoints", 3)
	assert.Equal(t, map[raceKey]bool{{domain.SportF1, 2}: true}, failed)
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaim_StopsMarkingAtFailedImport(t *testing.T) {
	importer := new(MockImporter)
	importer.On("ImportPoints", mock.Anything, domain.SystemActor, mock.MatchedBy(func(imp domain.PointsImport) bool {
		return imp.RaceID == 2
	})).Return(0, errors.New("connection refused"))
	importer.On("ImportPoints", mock.Anything, domain.SystemActor, mock.Anything).Return(1, nil)

	bodies := []string{
		`{"sport":"motogp","race_id":1,"points":[{"rider_id":7,"main":25}]}`,
		`not json`,
		`{"sport":"motogp","race_id":2,"points":[{"rider_id":8,"main":20}]}`,
		`{"sport":"motogp","race_id":3,"points":[{"rider_id":9,"main":16}]}`,
	}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(bodies))}
	for i, body := range bodies {
		claim.messages <- &sarama.ConsumerMessage{Offset: int64(i), Value: []byte(body)}
	}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	handler := &consumerGroupHandler{consumer: testConsumer(importer)}

	err := handler.ConsumeClaim(session, claim)

	require.ErrorIs(t, err, errImportFailed)
	assert.Equal(t, []int64{0, 1}, session.marked)
	importer.AssertNumberOfCalls(t, "ImportPoints", 5)
}

func TestConsumeClaim_MarksProcessedBatch(t *testing.T) {
	importer := new(MockImporter)
	importer.On("ImportPoints", mock.Anything, domain.SystemActor, mock.Anything).Return(1, nil)

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 10, Value: []byte(`{"sport":"f1","race_id":4,"points":[{"rider_id":1,"main":25}]}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 11, Value: []byte(`{"sport":"f1","race_id":4,"points":[{"rider_id":2,"main":18}]}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	handler := &consumerGroupHandler{consumer: testConsumer(importer)}

	require.NoError(t, handler.ConsumeClaim(session, claim))
	assert.Equal(t, []int64{10, 11}, session.marked)
	importer.AssertNumberOfCalls(t, "ImportPoints", 1)
}
