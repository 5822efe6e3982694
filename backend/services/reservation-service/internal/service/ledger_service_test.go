package service_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
	"vaggo/backend/services/reservation-service/internal/repository/memory"
	"vaggo/backend/services/reservation-service/internal/service"
)

type brokenLedger struct {
	err error
}

func (b brokenLedger) Apply(context.Context, models.ApplyRequest) (*models.Transaction, error) {
	return nil, b.err
}

func (b brokenLedger) Balance(context.Context, string) (int64, error) { return 0, b.err }

func (b brokenLedger) ListByAccount(context.Context, string, int) ([]models.Transaction, error) {
	return nil, b.err
}

func (b brokenLedger) ListByReservation(context.Context, uuid.UUID) ([]models.Transaction, error) {
	return nil, b.err
}

func TestLedgerService_ApplyValidation(t *testing.T) {
	ledger := service.NewLedgerService(memory.NewLedgerStore(), zaptest.NewLogger(t))

	tests := []struct {
		name string
		req  models.ApplyRequest
	}{
		{name: "missing account", req: models.ApplyRequest{Amount: 100, Kind: models.TransactionCredit}},
		{name: "unknown kind", req: models.ApplyRequest{AccountID: "acc-1", Amount: 100, Kind: "bonus"}},
		{name: "zero amount", req: models.ApplyRequest{AccountID: "acc-1", Kind: models.TransactionCredit}},
		{name: "positive debit", req: models.ApplyRequest{AccountID: "acc-1", Amount: 100, Kind: models.TransactionDebit}},
		{name: "negative credit", req: models.ApplyRequest{AccountID: "acc-1", Amount: -100, Kind: models.TransactionCredit}},
		{name: "negative refund", req: models.ApplyRequest{AccountID: "acc-1", Amount: -100, Kind: models.TransactionRefund}},
		{name: "oversized credit", req: models.ApplyRequest{AccountID: "acc-1", Amount: models.MaxAmount + 1, Kind: models.TransactionCredit}},
		{name: "oversized debit", req: models.ApplyRequest{AccountID: "acc-1", Amount: math.MinInt64, Kind: models.TransactionDebit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.Apply(context.Background(), tt.req)
			assert.ErrorIs(t, err, errs.ErrInvalidInput)
		})
	}
}

func TestLedgerService_StoreFaultsAreUnavailable(t *testing.T) {
	ledger := service.NewLedgerService(brokenLedger{err: errors.New("connection refused")}, zaptest.NewLogger(t))

	_, err := ledger.Apply(context.Background(), models.ApplyRequest{AccountID: "acc-1", Amount: 100, Kind: models.TransactionCredit})
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)

	_, err = ledger.Balance(context.Background(), "acc-1")
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)

	_, err = ledger.Wallet(context.Background(), "acc-1")
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
}

func TestLedgerService_Wallet(t *testing.T) {
	ctx := context.Background()
	ledger := service.NewLedgerService(memory.NewLedgerStore(), zaptest.NewLogger(t))

	empty, err := ledger.Wallet(ctx, "acc-1")
	require.NoError(t, err)
	assert.Zero(t, empty.Balance)
	assert.NotNil(t, empty.Transactions)

	for i := 0; i < service.WalletLimit+5; i++ {
		_, err := ledger.Apply(ctx, models.ApplyRequest{AccountID: "acc-1", Amount: 10, Kind: models.TransactionCredit})
		require.NoError(t, err)
	}
	_, err = ledger.Apply(ctx, models.ApplyRequest{AccountID: "acc-1", Amount: -25, Kind: models.TransactionDebit, Description: "latest"})
	require.NoError(t, err)

	w, err := ledger.Wallet(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64((service.WalletLimit+5)*10-25), w.Balance)
	require.Len(t, w.Transactions, service.WalletLimit)
	assert.Equal(t, "latest", w.Transactions[0].Description)
}

func TestLedgerService_Overdraft(t *testing.T) {
	ctx := context.Background()
	ledger := service.NewLedgerService(memory.NewLedgerStore(), zaptest.NewLogger(t))

	_, err := ledger.Apply(ctx, models.ApplyRequest{AccountID: "acc-1", Amount: -1, Kind: models.TransactionDebit})
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.False(t, errs.IsRetryable(err))
}

func TestLedgerService_BalanceOverflowRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()
	_, err := store.Apply(ctx, models.ApplyRequest{AccountID: "acc-1", Amount: math.MaxInt64 - 5, Kind: models.TransactionCredit})
	require.NoError(t, err)
	ledger := service.NewLedgerService(store, zaptest.NewLogger(t))

	_, err = ledger.Apply(ctx, models.ApplyRequest{AccountID: "acc-1", Amount: 10, Kind: models.TransactionCredit})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	assert.False(t, errs.IsRetryable(err))

	balance, err := ledger.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-5), balance)
}
