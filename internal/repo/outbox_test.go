package repo

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOutbox_PollPublishMark(t *testing.T) {
	r, pub := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New().String()

	evt := &model.OutboxEvent{Aggregate: "notification", AggregateID: "n1", PartitionKey: userID,
		EventType: model.EventNotificationCreated, Payload: `{"title":"hi"}`}
	require.NoError(t, r.CreateOutboxEvent(ctx, nil, evt))

	evts, err := r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)

	require.NoError(t, r.PublishEvent(ctx, evts[0]))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, userID, string(pub.msgs[0].Key))
	assert.Equal(t, `{"title":"hi"}`, string(pub.msgs[0].Value))

	require.NoError(t, r.MarkOutboxProcessed(ctx, evts[0].ID))
	evts, err = r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, evts)
}

func TestBalanceCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	r := NewRepository(nil, rdb, nil, zap.NewNop().Sugar())
	ctx := context.Background()
	id := uuid.MustParse("7f7c1c8e-2f0a-4c53-9a57-3b3f4f0e6a11")

	key := "balance:" + id.String()
	mock.ExpectEval(cacheBalanceScript, []string{key}, "3", "3:42.5", "300000").SetVal(int64(1))
	mock.ExpectGet(key).SetVal("3:42.5")
	mock.ExpectGet(key).RedisNil()

	require.NoError(t, r.CacheBalance(ctx, id, decimal.RequireFromString("42.5"), 3))
	bal, err := r.GetCachedBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("42.5")))

	_, err = r.GetCachedBalance(ctx, id)
	assert.ErrorIs(t, err, redis.Nil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceCache_MalformedEntry(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	r := NewRepository(nil, rdb, nil, zap.NewNop().Sugar())
	id := uuid.New()

	mock.ExpectGet("balance:" + id.String()).SetVal("42.5")

	_, err := r.GetCachedBalance(context.Background(), id)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceCache_Disabled(t *testing.T) {
	r := NewRepository(nil, nil, nil, zap.NewNop().Sugar())
	ctx := context.Background()
	assert.NoError(t, r.CacheBalance(ctx, uuid.New(), decimal.NewFromInt(1), 1))
	_, err := r.GetCachedBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, redis.Nil)
}
