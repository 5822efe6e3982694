package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

// WalletLimit is how many recent transactions the wallet view carries.
const WalletLimit = 50

// Wallet is the derived balance plus the most recent transactions, newest first.
type Wallet struct {
	AccountID    string               `json:"accountId"`
	Balance      int64                `json:"balance"`
	Transactions []models.Transaction `json:"transactions"`
}

// LedgerService validates ledger writes and maps store faults to errs.ErrStoreUnavailable.
type LedgerService struct {
	store   LedgerStore
	logger  *zap.Logger
	metrics counters
}

// NewLedgerService builds service.
func NewLedgerService(store LedgerStore, logger *zap.Logger) *LedgerService {
	return &LedgerService{store: store, logger: logger.Named("ledger"), metrics: newCounters()}
}

// Apply appends one transaction. Debits fail with errs.ErrInsufficientFunds when they would
// overdraw; a repeated external payment id returns the original transaction.
func (s *LedgerService) Apply(ctx context.Context, req models.ApplyRequest) (*models.Transaction, error) {
	if err := validateApply(req); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "ledger.apply", trace.WithAttributes(
		attribute.String("ledger.kind", string(req.Kind)),
		attribute.Int64("ledger.amount", req.Amount),
	))
	defer span.End()

	tx, err := s.store.Apply(ctx, req)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidInput) {
			s.metrics.ledgerRejected.Add(ctx, 1)
			return nil, err
		}
		if errors.Is(err, errs.ErrInsufficientFunds) {
			s.metrics.ledgerRejected.Add(ctx, 1)
			s.logger.Info("ledger apply rejected",
				zap.String("account_id", req.AccountID),
				zap.Int64("amount", req.Amount),
				zap.Error(err),
			)
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		s.logger.Warn("ledger apply failed", zap.String("account_id", req.AccountID), zap.Error(err))
		return nil, errs.Unavailable("ledger.apply", err)
	}

	if req.ExternalPaymentID != "" && (tx.AccountID != req.AccountID || tx.Amount != req.Amount || tx.Kind != req.Kind) {
		return nil, fmt.Errorf("external payment %s already applied with different details: %w",
			req.ExternalPaymentID, errs.ErrInvalidInput)
	}

	s.metrics.ledgerApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(tx.Kind))))
	s.logger.Info("ledger transaction applied",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("account_id", tx.AccountID),
		zap.String("kind", string(tx.Kind)),
		zap.Int64("amount", tx.Amount),
	)
	return tx, nil
}

func validateApply(req models.ApplyRequest) error {
	switch {
	case strings.TrimSpace(req.AccountID) == "":
		return fmt.Errorf("account id required: %w", errs.ErrInvalidInput)
	case !req.Kind.Valid():
		return fmt.Errorf("unknown transaction kind %q: %w", req.Kind, errs.ErrInvalidInput)
	case req.Amount == 0:
		return fmt.Errorf("zero amount: %w", errs.ErrInvalidInput)
	case req.Amount > models.MaxAmount || req.Amount < -models.MaxAmount:
		return fmt.Errorf("amount %d exceeds %d: %w", req.Amount, models.MaxAmount, errs.ErrInvalidInput)
	case req.Kind == models.TransactionDebit && req.Amount > 0:
		return fmt.Errorf("debit must be negative: %w", errs.ErrInvalidInput)
	case req.Kind != models.TransactionDebit && req.Amount < 0:
		return fmt.Errorf("%s must be positive: %w", req.Kind, errs.ErrInvalidInput)
	}
	return nil
}

// Balance returns the derived balance.
func (s *LedgerService) Balance(ctx context.Context, accountID string) (int64, error) {
	balance, err := s.store.Balance(ctx, accountID)
	if err != nil {
		return 0, errs.Unavailable("ledger.balance", err)
	}
	return balance, nil
}

// Transactions returns up to limit transactions, newest first.
func (s *LedgerService) Transactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > WalletLimit {
		limit = WalletLimit
	}
	txs, err := s.store.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, errs.Unavailable("ledger.list", err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}

// ReservationTransactions returns every transaction correlated with a reservation.
func (s *LedgerService) ReservationTransactions(ctx context.Context, reservationID uuid.UUID) ([]models.Transaction, error) {
	txs, err := s.store.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, errs.Unavailable("ledger.list_reservation", err)
	}
	return txs, nil
}

// Wallet returns balance and recent history.
func (s *LedgerService) Wallet(ctx context.Context, accountID string) (*Wallet, error) {
	balance, err := s.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	txs, err := s.Transactions(ctx, accountID, WalletLimit)
	if err != nil {
		return nil, err
	}
	return &Wallet{AccountID: accountID, Balance: balance, Transactions: txs}, nil
}
