package guard

import (
	"context"
	"sync"
	"time"
)

// MemoryHolds is an in-process HoldStore with the same expiry semantics as the redis one.
type MemoryHolds struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	holds map[string]memoryHold
}

type memoryHold struct {
	token   string
	expires time.Time
}

// NewMemoryHolds returns an empty hold table.
func NewMemoryHolds(ttl time.Duration) *MemoryHolds {
	return &MemoryHolds{ttl: ttl, now: time.Now, holds: make(map[string]memoryHold)}
}

// Acquire claims spotID unless a live hold exists.
func (m *MemoryHolds) Acquire(ctx context.Context, spotID, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if h, ok := m.holds[spotID]; ok && now.Before(h.expires) {
		return false, nil
	}
	m.holds[spotID] = memoryHold{token: token, expires: now.Add(m.ttl)}
	return true, nil
}

// Release drops the hold when token still owns it.
func (m *MemoryHolds) Release(_ context.Context, spotID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.holds[spotID]; ok && h.token == token {
		delete(m.holds, spotID)
	}
	return nil
}
