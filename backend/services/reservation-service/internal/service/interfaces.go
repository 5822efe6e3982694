package service

import (
	"context"

	"github.com/google/uuid"

	"vaggo/backend/services/reservation-service/internal/guard"
	"vaggo/backend/services/reservation-service/internal/models"
)

// LedgerStore is the durable append-only transaction log.
type LedgerStore interface {
	Apply(ctx context.Context, req models.ApplyRequest) (*models.Transaction, error)
	Balance(ctx context.Context, accountID string) (int64, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Transaction, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Transaction, error)
}

// ReservationStore persists reservations.
type ReservationStore interface {
	Create(ctx context.Context, res *models.Reservation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Transition(ctx context.Context, id uuid.UUID, status models.ReservationStatus) (*models.Reservation, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Reservation, error)
	ActiveByAccount(ctx context.Context, accountID string) ([]models.Reservation, error)
	ListActive(ctx context.Context) ([]models.Reservation, error)
}

// SpotGuard hands out short-lived spot holds.
type SpotGuard interface {
	TryHold(ctx context.Context, spotID string) (*guard.Hold, error)
	Release(ctx context.Context, hold *guard.Hold)
}

// Timers drives the countdown of active reservations.
type Timers interface {
	Start(res models.Reservation) int
	Stop(id uuid.UUID)
}

// EventNotifier delivers reservation notifications to clients.
type EventNotifier interface {
	Notify(ctx context.Context, n models.Notification) error
}
