package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

// ReservationStore keeps reservations in memory and enforces one active reservation per spot.
type ReservationStore struct {
	mu           sync.RWMutex
	reservations map[uuid.UUID]models.Reservation
	activeSpots  map[string]uuid.UUID
	now          func() time.Time
}

// NewReservationStore returns an empty store.
func NewReservationStore() *ReservationStore {
	return &ReservationStore{
		reservations: make(map[uuid.UUID]models.Reservation),
		activeSpots:  make(map[string]uuid.UUID),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create stores res, failing with errs.ErrSpotUnavailable when the spot already has an active reservation.
func (s *ReservationStore) Create(ctx context.Context, res *models.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reservations[res.ID]; exists {
		return fmt.Errorf("reservation %s already exists", res.ID)
	}
	if res.Status == models.ReservationActive {
		if _, taken := s.activeSpots[res.SpotID]; taken {
			return fmt.Errorf("spot %s: %w", res.SpotID, errs.ErrSpotUnavailable)
		}
		s.activeSpots[res.SpotID] = res.ID
	}
	now := s.now()
	res.CreatedAt, res.UpdatedAt = now, now
	s.reservations[res.ID] = *res
	return nil
}

// Get returns the reservation or errs.ErrNotFound.
func (s *ReservationStore) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &res, nil
}

// Transition moves an active reservation to status; terminal reservations are returned as-is.
func (s *ReservationStore) Transition(ctx context.Context, id uuid.UUID, status models.ReservationStatus) (*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if res.Status != models.ReservationActive {
		return &res, nil
	}
	res.Status = status
	res.UpdatedAt = s.now()
	s.reservations[id] = res
	if status != models.ReservationActive && s.activeSpots[res.SpotID] == id {
		delete(s.activeSpots, res.SpotID)
	}
	return &res, nil
}

// ListByAccount returns the account's reservations, newest first.
func (s *ReservationStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := s.filter(ctx, func(r models.Reservation) bool { return r.AccountID == accountID })
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ActiveByAccount returns the account's active reservations, newest first.
func (s *ReservationStore) ActiveByAccount(ctx context.Context, accountID string) ([]models.Reservation, error) {
	out, err := s.filter(ctx, func(r models.Reservation) bool {
		return r.AccountID == accountID && r.Status == models.ReservationActive
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListActive returns every active reservation ordered by end time.
func (s *ReservationStore) ListActive(ctx context.Context) ([]models.Reservation, error) {
	out, err := s.filter(ctx, func(r models.Reservation) bool { return r.Status == models.ReservationActive })
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

// HasActiveForSpot reports whether the spot has an active reservation.
func (s *ReservationStore) HasActiveForSpot(ctx context.Context, spotID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.activeSpots[spotID]
	return ok, nil
}

func (s *ReservationStore) filter(ctx context.Context, keep func(models.Reservation) bool) ([]models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reservation
	for _, r := range s.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
