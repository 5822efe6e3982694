package notify

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HubConfig bounds the offline queues and lists the browser origins allowed to subscribe.
type HubConfig struct {
	PendingLimit   int
	PendingTTL     time.Duration
	AllowedOrigins []string
}

type pendingQueue struct {
	messages [][]byte
	updated  time.Time
}

// Hub fans notifications out to the sockets of each account. Messages for an account with no
// open socket wait in a bounded queue and are flushed on its next connect. Queues untouched
// for PendingTTL are dropped.
type Hub struct {
	mu           sync.RWMutex
	connections  map[string]map[*Connection]struct{}
	pending      map[string]*pendingQueue
	pendingLimit int
	pendingTTL   time.Duration
	nextSweep    time.Time
	now          func() time.Time

	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	logger       *zap.Logger
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewHub builds a hub.
func NewHub(cfg HubConfig, logger *zap.Logger) *Hub {
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = 32
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 24 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		connections:  make(map[string]map[*Connection]struct{}),
		pending:      make(map[string]*pendingQueue),
		pendingLimit: cfg.PendingLimit,
		pendingTTL:   cfg.PendingTTL,
		now:          time.Now,
		writeTimeout: 10 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		logger: logger.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// originChecker admits requests without an Origin header and browsers on the allow list.
// An empty list keeps the upgrader's same-host default.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// ServeWS upgrades the request and subscribes the socket to accountID's notifications.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, accountID string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConnection(accountID, ws, h.writeTimeout, h.logger, h.remove)
	h.add(conn)
	go conn.Start(h.ctx)
	h.logger.Info("notification subscriber connected", zap.String("account_id", accountID))
}

func (h *Hub) add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.connections[conn.AccountID()]
	if !ok {
		set = make(map[*Connection]struct{})
		h.connections[conn.AccountID()] = set
	}
	set[conn] = struct{}{}

	if queue, ok := h.pending[conn.AccountID()]; ok {
		for _, msg := range queue.messages {
			conn.Send(msg)
		}
		delete(h.pending, conn.AccountID())
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.connections[conn.AccountID()]
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.AccountID())
	}
}

// Publish delivers payload to every socket of accountID, queueing it when none is open.
// It returns the number of sockets that accepted the message.
func (h *Hub) Publish(accountID string, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for conn := range h.connections[accountID] {
		if conn.Send(payload) {
			delivered++
		}
	}
	if delivered == 0 {
		now := h.now()
		h.sweepPending(now)
		queue, ok := h.pending[accountID]
		if !ok {
			queue = &pendingQueue{}
			h.pending[accountID] = queue
		}
		queue.messages = append(queue.messages, payload)
		if len(queue.messages) > h.pendingLimit {
			queue.messages = queue.messages[len(queue.messages)-h.pendingLimit:]
		}
		queue.updated = now
	}
	return delivered
}

// sweepPending drops stale queues at most once per pendingTTL. Callers hold h.mu.
func (h *Hub) sweepPending(now time.Time) {
	if now.Before(h.nextSweep) {
		return
	}
	for accountID, queue := range h.pending {
		if now.Sub(queue.updated) >= h.pendingTTL {
			delete(h.pending, accountID)
		}
	}
	h.nextSweep = now.Add(h.pendingTTL)
}

// PendingAccounts returns how many accounts have queued messages.
func (h *Hub) PendingAccounts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pending)
}

// Subscribers returns how many sockets accountID has open.
func (h *Hub) Subscribers(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[accountID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.cancel()
}
