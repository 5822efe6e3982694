package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

// CreditService turns confirmed provider payments into wallet credits.
type CreditService struct {
	ledger  *LedgerService
	logger  *zap.Logger
	metrics counters
}

// NewCreditService builds service.
func NewCreditService(ledger *LedgerService, logger *zap.Logger) *CreditService {
	return &CreditService{ledger: ledger, logger: logger.Named("credit"), metrics: newCounters()}
}

// OnExternalPaymentConfirmed credits amount to the account. Providers redeliver webhooks, so
// the payment id is the idempotency key: every delivery returns the same transaction.
func (s *CreditService) OnExternalPaymentConfirmed(ctx context.Context, accountID string, amount int64, externalPaymentID string) (*models.Transaction, error) {
	externalPaymentID = strings.TrimSpace(externalPaymentID)
	if externalPaymentID == "" {
		return nil, fmt.Errorf("external payment id required: %w", errs.ErrInvalidInput)
	}
	if amount <= 0 || amount > models.MaxAmount {
		return nil, fmt.Errorf("credit amount must be in (0, %d]: %w", models.MaxAmount, errs.ErrInvalidInput)
	}

	tx, err := s.ledger.Apply(ctx, models.ApplyRequest{
		AccountID:         accountID,
		Amount:            amount,
		Kind:              models.TransactionCredit,
		Description:       "Wallet top-up",
		ExternalPaymentID: externalPaymentID,
	})
	if err != nil {
		s.logger.Warn("external credit failed",
			zap.String("external_payment_id", externalPaymentID),
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.creditsApplied.Add(ctx, 1)
	s.logger.Info("external credit processed",
		zap.String("external_payment_id", externalPaymentID),
		zap.String("transaction_id", tx.ID.String()),
	)
	return tx, nil
}
