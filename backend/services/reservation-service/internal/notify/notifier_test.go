package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/models"
	redisstore "vaggo/backend/services/reservation-service/internal/redis"
)

type capturePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (c *capturePublisher) Publish(accountID string, payload []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messages == nil {
		c.messages = make(map[string][][]byte)
	}
	c.messages[accountID] = append(c.messages[accountID], payload)
	return 1
}

func (c *capturePublisher) count(accountID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages[accountID])
}

func sampleNotification(kind models.NotificationKind) models.Notification {
	return models.Notification{
		ReservationID: uuid.New(),
		AccountID:     "acc-1",
		Kind:          kind,
		At:            time.Date(2026, 5, 4, 9, 25, 0, 0, time.UTC),
	}
}

func TestNotifier_DeliversOnce(t *testing.T) {
	pub := &capturePublisher{}
	n := NewNotifier(NewMemoryMarkers(time.Hour), pub, zap.NewNop())
	notif := sampleNotification(models.NotificationWarn5)

	for i := 0; i < 3; i++ {
		require.NoError(t, n.Notify(context.Background(), notif))
	}
	require.Equal(t, 1, pub.count("acc-1"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.messages["acc-1"][0], &decoded))
	assert.Equal(t, notif.ReservationID.String(), decoded["reservationId"])
	assert.Equal(t, "warn5", decoded["kind"])
	assert.Equal(t, "2026-05-04T09:25:00Z", decoded["at"])
	assert.NotContains(t, decoded, "AccountID")

	// a different stage of the same reservation is a different notification
	notif.Kind = models.NotificationExpired
	require.NoError(t, n.Notify(context.Background(), notif))
	assert.Equal(t, 2, pub.count("acc-1"))
}

func TestNotifier_RedisMarkers(t *testing.T) {
	client, mock := redismock.NewClientMock()
	pub := &capturePublisher{}
	n := NewNotifier(redisstore.NewMarkerStore(client, "notify:sent", time.Hour), pub, zap.NewNop())
	notif := sampleNotification(models.NotificationWarn15)
	key := fmt.Sprintf("notify:sent:%s:%s", notif.ReservationID, notif.Kind)

	mock.ExpectSetNX(key, 1, time.Hour).SetVal(true)
	mock.ExpectSetNX(key, 1, time.Hour).SetVal(false)
	mock.ExpectSetNX(key, 1, time.Hour).SetErr(errors.New("redis down"))

	require.NoError(t, n.Notify(context.Background(), notif))
	require.NoError(t, n.Notify(context.Background(), notif))
	assert.Equal(t, 1, pub.count("acc-1"))

	// without a dedupe answer the event is still delivered
	require.NoError(t, n.Notify(context.Background(), notif))
	assert.Equal(t, 2, pub.count("acc-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryMarkers_Expire(t *testing.T) {
	m := NewMemoryMarkers(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	first, _ := m.Mark(context.Background(), "k")
	again, _ := m.Mark(context.Background(), "k")
	now = now.Add(time.Minute)
	later, _ := m.Mark(context.Background(), "k")

	assert.True(t, first)
	assert.False(t, again)
	assert.True(t, later)
}

func TestMemoryMarkers_SweepsLapsedMarks(t *testing.T) {
	m := NewMemoryMarkers(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		_, err := m.Mark(context.Background(), fmt.Sprintf("res-%d:expired", i))
		require.NoError(t, err)
	}
	require.Len(t, m.marks, 100)

	now = now.Add(2 * time.Minute)
	first, err := m.Mark(context.Background(), "res-new:expired")
	require.NoError(t, err)
	assert.True(t, first)
	assert.Len(t, m.marks, 1)
}
