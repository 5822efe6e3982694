// Package errs holds the error taxonomy shared by the ledger, guard and reservation components.
// Callers match with errors.Is against the sentinels; the structured types carry context and
// unwrap to their sentinel.
package errs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientFunds is returned when a debit would take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSpotUnavailable is returned when the spot is disabled, reserved or held by someone else.
	ErrSpotUnavailable = errors.New("spot unavailable")

	// ErrStoreUnavailable marks a transient infrastructure fault. Callers may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvariantViolation means compensation itself failed and state needs manual reconciliation.
	ErrInvariantViolation = errors.New("invariant violation")

	ErrNotFound        = errors.New("not found")
	ErrVehicleRequired = errors.New("vehicle required")
	ErrInvalidInput    = errors.New("invalid input")
)

// InsufficientFundsError details a rejected debit.
type InsufficientFundsError struct {
	AccountID string
	Balance   int64
	Requested int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: account %s balance %d, requested %d", e.AccountID, e.Balance, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// StoreError wraps an infrastructure failure of a durable store operation.
type StoreError struct {
	Op  string
	Err error
}

// Unavailable wraps err as a StoreError unless it already carries a domain meaning.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomain(err) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// InvariantViolationError reports a saga whose compensation did not complete.
type InvariantViolationError struct {
	ReservationID   uuid.UUID
	Step            string
	Cause           error
	CompensationErr error
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: reservation %s step %s failed (%v) and compensation failed (%v)",
		e.ReservationID, e.Step, e.Cause, e.CompensationErr)
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}

// IsRetryable reports whether err is a transient fault worth retrying.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrInvariantViolation) {
		return false
	}
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// IsClientError reports whether err stems from the request or a lost race the user can act on.
func IsClientError(err error) bool {
	return isDomain(err)
}

func isDomain(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSpotUnavailable) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrVehicleRequired) ||
		errors.Is(err, ErrInvalidInput)
}
