package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/models"
)

// Stage is one notification deadline, Offset before the reservation end.
type Stage struct {
	Kind   models.NotificationKind
	Offset time.Duration
}

// Stages in firing order.
var Stages = []Stage{
	{Kind: models.NotificationWarn15, Offset: 15 * time.Minute},
	{Kind: models.NotificationWarn5, Offset: 5 * time.Minute},
	{Kind: models.NotificationExpired, Offset: 0},
}

// Event is raised when a stage deadline is reached.
type Event struct {
	ReservationID uuid.UUID
	AccountID     string
	Kind          models.NotificationKind
	At            time.Time
}

// Notification converts the event to its client payload.
func (e Event) Notification() models.Notification {
	return models.Notification{ReservationID: e.ReservationID, AccountID: e.AccountID, Kind: e.Kind, At: e.At}
}

// Handler consumes fired events. It runs on the clock's callback goroutine.
type Handler func(Event)

// Upcoming lists the stage events of a reservation ending at end whose deadline is strictly
// after now. Passed stages are dropped, which is how a restarted timer catches up.
func Upcoming(res models.Reservation, now time.Time) []Event {
	var out []Event
	for _, st := range Stages {
		at := res.EndTime.Add(-st.Offset)
		if !at.After(now) {
			continue
		}
		out = append(out, Event{ReservationID: res.ID, AccountID: res.AccountID, Kind: st.Kind, At: at})
	}
	return out
}

type entry struct {
	timers  []Stopper
	pending map[models.NotificationKind]time.Time
}

// Scheduler owns the countdown state of every active reservation.
type Scheduler struct {
	clock   Clock
	handler Handler
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	closed  bool
}

// NewScheduler builds a scheduler delivering events to handler.
func NewScheduler(clock Clock, handler Handler, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:   clock,
		handler: handler,
		logger:  logger.Named("timer"),
		entries: make(map[uuid.UUID]*entry),
	}
}

// Start arms the remaining stages for res, replacing any schedule it already had. It returns
// the number of stages armed; zero means the reservation has already expired.
func (s *Scheduler) Start(res models.Reservation) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	s.stopLocked(res.ID)

	now := s.clock.Now()
	events := Upcoming(res, now)
	if len(events) == 0 {
		return 0
	}

	e := &entry{pending: make(map[models.NotificationKind]time.Time, len(events))}
	for _, ev := range events {
		ev := ev
		e.pending[ev.Kind] = ev.At
		e.timers = append(e.timers, s.clock.AfterFunc(ev.At.Sub(now), func() { s.fire(e, ev) }))
	}
	s.entries[res.ID] = e

	s.logger.Debug("reservation timer armed",
		zap.String("reservation_id", res.ID.String()),
		zap.Int("stages", len(events)),
		zap.Time("end_time", res.EndTime),
	)
	return len(events)
}

func (s *Scheduler) fire(e *entry, ev Event) {
	s.mu.Lock()
	if s.entries[ev.ReservationID] != e {
		s.mu.Unlock()
		return
	}
	if _, ok := e.pending[ev.Kind]; !ok {
		s.mu.Unlock()
		return
	}
	delete(e.pending, ev.Kind)
	if len(e.pending) == 0 {
		delete(s.entries, ev.ReservationID)
	}
	s.mu.Unlock()

	s.handler(ev)
}

// Stop cancels whatever is left of the reservation's schedule.
func (s *Scheduler) Stop(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(id)
}

func (s *Scheduler) stopLocked(id uuid.UUID) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	for _, t := range e.timers {
		t.Stop()
	}
	delete(s.entries, id)
}

// Pending returns the kinds still scheduled for the reservation in firing order.
func (s *Scheduler) Pending(id uuid.UUID) []models.NotificationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	var out []models.NotificationKind
	for _, st := range Stages {
		if _, ok := e.pending[st.Kind]; ok {
			out = append(out, st.Kind)
		}
	}
	return out
}

// Close stops every schedule; later Starts are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.entries {
		s.stopLocked(id)
	}
	s.closed = true
}
