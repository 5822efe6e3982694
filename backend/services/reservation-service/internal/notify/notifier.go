package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/models"
)

// Marker records that a notification was already emitted.
type Marker interface {
	Mark(ctx context.Context, id string) (bool, error)
}

// Publisher pushes an encoded notification to an account's subscribers.
type Publisher interface {
	Publish(accountID string, payload []byte) int
}

// Notifier emits each (reservation, kind) notification once, even across timer restarts.
type Notifier struct {
	marker    Marker
	publisher Publisher
	logger    *zap.Logger
	sent      metric.Int64Counter
}

// NewNotifier builds a notifier.
func NewNotifier(marker Marker, publisher Publisher, logger *zap.Logger) *Notifier {
	sent, _ := otel.Meter("reservation-service").Int64Counter("notifications_sent_total",
		metric.WithDescription("Reservation notifications published to subscribers"))
	return &Notifier{marker: marker, publisher: publisher, logger: logger.Named("notifier"), sent: sent}
}

// Notify publishes n unless it was already emitted. When the marker store is unreachable the
// notification is still published.
func (n *Notifier) Notify(ctx context.Context, notif models.Notification) error {
	key := fmt.Sprintf("%s:%s", notif.ReservationID, notif.Kind)
	first, err := n.marker.Mark(ctx, key)
	if err != nil {
		n.logger.Warn("notification dedupe unavailable", zap.String("key", key), zap.Error(err))
		first = true
	}
	if !first {
		n.logger.Debug("notification already sent", zap.String("key", key))
		return nil
	}

	payload, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}
	delivered := n.publisher.Publish(notif.AccountID, payload)
	n.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(notif.Kind))))

	n.logger.Info("notification published",
		zap.String("reservation_id", notif.ReservationID.String()),
		zap.String("kind", string(notif.Kind)),
		zap.Int("subscribers", delivered),
	)
	return nil
}

// MemoryMarkers is an in-process Marker whose entries lapse after ttl.
type MemoryMarkers struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	marks     map[string]time.Time
	nextSweep time.Time
}

// NewMemoryMarkers returns an empty marker set.
func NewMemoryMarkers(ttl time.Duration) *MemoryMarkers {
	return &MemoryMarkers{ttl: ttl, now: time.Now, marks: make(map[string]time.Time)}
}

// Mark reports true the first time id is seen within ttl.
func (m *MemoryMarkers) Mark(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	if exp, ok := m.marks[id]; ok && now.Before(exp) {
		return false, nil
	}
	m.marks[id] = now.Add(m.ttl)
	return true, nil
}

// sweep drops lapsed marks at most once per ttl.
func (m *MemoryMarkers) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for id, exp := range m.marks {
		if !now.Before(exp) {
			delete(m.marks, id)
		}
	}
	m.nextSweep = now.Add(m.ttl)
}
