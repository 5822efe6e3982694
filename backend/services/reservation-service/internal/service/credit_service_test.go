package service_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

func TestCredit_ReplaysApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.credits.OnExternalPaymentConfirmed(ctx, "acc-1", 2500, "pay_123")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := f.credits.OnExternalPaymentConfirmed(ctx, "acc-1", 2500, "pay_123")
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}

	assert.Equal(t, int64(2500), f.balance(t, "acc-1"))
	assert.Equal(t, []models.TransactionKind{models.TransactionCredit}, f.kinds(t, "acc-1"))
	require.NotNil(t, first.ExternalPaymentID)
	assert.Equal(t, "pay_123", *first.ExternalPaymentID)
}

func TestCredit_ConcurrentReplays(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.credits.OnExternalPaymentConfirmed(context.Background(), "acc-1", 700, "pay_race")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(700), f.balance(t, "acc-1"))
}

func TestCredit_ReplayWithDifferentDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.credits.OnExternalPaymentConfirmed(ctx, "acc-1", 2500, "pay_1")
	require.NoError(t, err)

	_, err = f.credits.OnExternalPaymentConfirmed(ctx, "acc-1", 9999, "pay_1")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.credits.OnExternalPaymentConfirmed(ctx, "acc-2", 2500, "pay_1")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	assert.Equal(t, int64(2500), f.balance(t, "acc-1"))
	assert.Zero(t, f.balance(t, "acc-2"))
}

func TestCredit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.credits.OnExternalPaymentConfirmed(ctx, "acc-1", 100, " ")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.credits.OnExternalPaymentConfirmed(ctx, "acc-1", 0, "pay_2")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.credits.OnExternalPaymentConfirmed(ctx, "", 100, "pay_3")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.credits.OnExternalPaymentConfirmed(ctx, "acc-1", math.MaxInt64, "pay_4")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.credits.OnExternalPaymentConfirmed(ctx, "acc-1", models.MaxAmount+1, "pay_5")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	assert.Zero(t, f.balance(t, "acc-1"))
}
