package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldStore_Acquire(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewHoldStore(client, 5*time.Second)

	mock.ExpectSetNX("spots:hold:spot-1", "tok-a", 5*time.Second).SetVal(true)
	mock.ExpectSetNX("spots:hold:spot-1", "tok-b", 5*time.Second).SetVal(false)

	ok, err := store.Acquire(context.Background(), "spot-1", "tok-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Acquire(context.Background(), "spot-1", "tok-b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldStore_Release(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewHoldStore(client, 5*time.Second)
	keys := []string{"spots:hold:spot-1"}

	mock.ExpectEvalSha(releaseScript.Hash(), keys, "tok-a").SetVal(int64(1))
	mock.ExpectEvalSha(releaseScript.Hash(), keys, "tok-stale").SetErr(redis.Nil)
	mock.ExpectEvalSha(releaseScript.Hash(), keys, "tok-a").SetErr(errors.New("connection reset"))

	require.NoError(t, store.Release(context.Background(), "spot-1", "tok-a"))
	require.NoError(t, store.Release(context.Background(), "spot-1", "tok-stale"))
	assert.Error(t, store.Release(context.Background(), "spot-1", "tok-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerStore(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewMarkerStore(client, "notify:sent", time.Hour)

	mock.ExpectSetNX("notify:sent:r1:warn5", 1, time.Hour).SetVal(true)
	mock.ExpectSetNX("notify:sent:r1:warn5", 1, time.Hour).SetVal(false)

	first, err := store.Mark(context.Background(), "r1:warn5")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.Mark(context.Background(), "r1:warn5")
	require.NoError(t, err)
	assert.False(t, again)

	assert.NoError(t, mock.ExpectationsWereMet())
}
