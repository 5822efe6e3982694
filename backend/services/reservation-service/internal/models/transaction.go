package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	TransactionCredit TransactionKind = "credit"
	TransactionDebit  TransactionKind = "debit"
	TransactionRefund TransactionKind = "refund"
)

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionCredit, TransactionDebit, TransactionRefund:
		return true
	}
	return false
}

// Transaction is an immutable, signed ledger entry. Amount is in minor units; debits are negative.
type Transaction struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	AccountID         string          `db:"account_id" json:"accountId"`
	Amount            int64           `db:"amount" json:"amountMinorUnits"`
	Kind              TransactionKind `db:"kind" json:"kind"`
	Description       string          `db:"description" json:"description"`
	ReservationID     *uuid.UUID      `db:"related_reservation_id" json:"reservationId,omitempty"`
	ExternalPaymentID *string         `db:"related_external_payment_id" json:"externalPaymentId,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// ApplyRequest is a single balance-affecting write. ExternalPaymentID, when set, is the
// idempotency key: applying it again yields the transaction recorded the first time.
type ApplyRequest struct {
	AccountID         string
	Amount            int64
	Kind              TransactionKind
	Description       string
	ReservationID     *uuid.UUID
	ExternalPaymentID string
}

// MaxAmount bounds the magnitude of a single transaction in minor units.
const MaxAmount int64 = 1_000_000_000

// AddAmount returns balance+amount, or false when the sum does not fit in an int64.
func AddAmount(balance, amount int64) (int64, bool) {
	sum := balance + amount
	if (amount > 0 && sum < balance) || (amount < 0 && sum > balance) {
		return 0, false
	}
	return sum, true
}
