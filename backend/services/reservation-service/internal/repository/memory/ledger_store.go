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

// LedgerStore is an in-process append-only ledger. Applies for one account are serialized by
// a per-account lock; different accounts never wait on each other beyond the short map guard.
type LedgerStore struct {
	accounts *keyedMutex

	mu         sync.RWMutex
	byAccount  map[string][]models.Transaction
	byExternal map[string]models.Transaction
	now        func() time.Time
}

// NewLedgerStore returns an empty ledger.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		accounts:   newKeyedMutex(),
		byAccount:  make(map[string][]models.Transaction),
		byExternal: make(map[string]models.Transaction),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Apply checks the derived balance and appends one transaction.
func (s *LedgerStore) Apply(ctx context.Context, req models.ApplyRequest) (*models.Transaction, error) {
	unlock := s.accounts.Lock(req.AccountID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.ExternalPaymentID != "" {
		s.mu.RLock()
		existing, ok := s.byExternal[req.ExternalPaymentID]
		s.mu.RUnlock()
		if ok {
			return &existing, nil
		}
	}

	s.mu.RLock()
	balance := sum(s.byAccount[req.AccountID])
	s.mu.RUnlock()

	next, ok := models.AddAmount(balance, req.Amount)
	if !ok {
		return nil, fmt.Errorf("account %s balance overflow: %w", req.AccountID, errs.ErrInvalidInput)
	}
	if next < 0 {
		return nil, &errs.InsufficientFundsError{AccountID: req.AccountID, Balance: balance, Requested: -req.Amount}
	}

	t := models.Transaction{
		ID:          uuid.New(),
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Kind:        req.Kind,
		Description: req.Description,
		CreatedAt:   s.now(),
	}
	if req.ReservationID != nil {
		id := *req.ReservationID
		t.ReservationID = &id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ExternalPaymentID != "" {
		// a different account may have recorded the same payment id meanwhile
		if existing, ok := s.byExternal[req.ExternalPaymentID]; ok {
			return &existing, nil
		}
		ext := req.ExternalPaymentID
		t.ExternalPaymentID = &ext
		s.byExternal[ext] = t
	}
	s.byAccount[req.AccountID] = append(s.byAccount[req.AccountID], t)
	return &t, nil
}

// Balance derives the balance by summing the account's transactions.
func (s *LedgerStore) Balance(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sum(s.byAccount[accountID]), nil
}

// ListByAccount returns up to limit transactions, newest first.
func (s *LedgerStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	src := s.byAccount[accountID]
	out := make([]models.Transaction, 0, min(limit, len(src)))
	for i := len(src) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, src[i])
	}
	s.mu.RUnlock()
	return out, nil
}

// ListByReservation returns the transactions correlated with a reservation in write order.
func (s *LedgerStore) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Transaction
	for _, txs := range s.byAccount {
		for _, t := range txs {
			if t.ReservationID != nil && *t.ReservationID == reservationID {
				out = append(out, t)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func sum(txs []models.Transaction) int64 {
	var total int64
	for _, t := range txs {
		total += t.Amount
	}
	return total
}
