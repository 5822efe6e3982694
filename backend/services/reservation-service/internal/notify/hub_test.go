package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startHub(t *testing.T, pendingLimit int) (*Hub, string) {
	t.Helper()
	return startHubWith(t, HubConfig{PendingLimit: pendingLimit})
}

func startHubWith(t *testing.T, cfg HubConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub(cfg, zaptest.NewLogger(t))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("account"))
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, account string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?account="+account, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(msg)
}

func TestHub_PublishToConnectedAccount(t *testing.T) {
	hub, url := startHub(t, 4)
	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	require.Eventually(t, func() bool {
		return hub.Subscribers("alice") == 1 && hub.Subscribers("bob") == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, hub.Publish("alice", []byte(`{"kind":"warn5"}`)))
	assert.Equal(t, `{"kind":"warn5"}`, readText(t, alice))

	assert.Equal(t, 1, hub.Publish("bob", []byte(`{"kind":"expired"}`)))
	assert.Equal(t, `{"kind":"expired"}`, readText(t, bob))
}

func TestHub_QueuesUntilConnect(t *testing.T) {
	hub, url := startHub(t, 2)

	assert.Zero(t, hub.Publish("carol", []byte("one")))
	assert.Zero(t, hub.Publish("carol", []byte("two")))
	assert.Zero(t, hub.Publish("carol", []byte("three")))

	conn := dial(t, url, "carol")
	// only the newest pendingLimit messages survive
	assert.Equal(t, "two", readText(t, conn))
	assert.Equal(t, "three", readText(t, conn))
}

func TestHub_RemovesClosedSockets(t *testing.T) {
	hub, url := startHub(t, 4)
	conn := dial(t, url, "dave")
	require.Eventually(t, func() bool { return hub.Subscribers("dave") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("dave") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_OriginAllowList(t *testing.T) {
	_, url := startHubWith(t, HubConfig{AllowedOrigins: []string{"https://app.vaggo.io/"}})
	url += "?account=erin"

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.vaggo.io"}})
	require.NoError(t, err)
	conn.Close()

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.net"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// native clients send no Origin
	conn, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.Close()
}

func TestOriginChecker_Wildcard(t *testing.T) {
	check := originChecker([]string{"https://a.vaggo.io", "*"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://anything.test")
	assert.True(t, check(req))

	assert.Nil(t, originChecker(nil))
}

func TestHub_DropsStalePendingQueues(t *testing.T) {
	hub := NewHub(HubConfig{PendingLimit: 4, PendingTTL: time.Hour}, zaptest.NewLogger(t))
	t.Cleanup(hub.Close)
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return now }

	for _, account := range []string{"frank", "grace", "heidi"} {
		hub.Publish(account, []byte("expired"))
	}
	require.Equal(t, 3, hub.PendingAccounts())

	now = now.Add(30 * time.Minute)
	hub.Publish("grace", []byte("warn5"))
	assert.Equal(t, 3, hub.PendingAccounts())

	now = now.Add(45 * time.Minute)
	hub.Publish("ivan", []byte("warn15"))
	// grace was touched 45 minutes ago; frank and heidi 75
	assert.Equal(t, 2, hub.PendingAccounts())
	assert.Len(t, hub.pending["grace"].messages, 2)
	assert.Contains(t, hub.pending, "ivan")
}
