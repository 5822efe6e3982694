package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"

	libdb "vaggo/backend/libs/db"
	"vaggo/backend/services/reservation-service/internal/db"
	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

const transactionColumns = `id, account_id, amount, kind, description, related_reservation_id, related_external_payment_id, created_at`

// TransactionRepository is the postgres ledger. Writes for one account are serialized with a
// transaction-scoped advisory lock keyed by the account id.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository returns repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*models.Transaction, error) {
	var (
		t           models.Transaction
		kind        string
		reservation uuid.NullUUID
		external    sql.NullString
	)
	if err := s.Scan(
		&t.ID,
		&t.AccountID,
		&t.Amount,
		&kind,
		&t.Description,
		&reservation,
		&external,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Kind = models.TransactionKind(kind)
	if reservation.Valid {
		id := reservation.UUID
		t.ReservationID = &id
	}
	if external.Valid {
		ext := external.String
		t.ExternalPaymentID = &ext
	}
	return &t, nil
}

func accountLockKey(accountID string) int64 {
	h := fnv.New64a()
	h.Write([]byte("ledger:"))
	h.Write([]byte(accountID))
	return int64(h.Sum64())
}

// Apply appends one transaction after checking the derived balance, all inside a single
// locked SQL transaction. A known external payment id returns the stored transaction.
func (r *TransactionRepository) Apply(ctx context.Context, req models.ApplyRequest) (*models.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", accountLockKey(req.AccountID)); err != nil {
		return nil, fmt.Errorf("acquiring account lock: %w", err)
	}

	if req.ExternalPaymentID != "" {
		existing, err := findByExternalID(ctx, tx, req.ExternalPaymentID)
		switch {
		case err == nil:
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("commit: %w", err)
			}
			return existing, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("lookup external payment: %w", err)
		}
	}

	var balance int64
	const balanceQuery = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id = $1`
	if err := tx.QueryRowContext(ctx, balanceQuery, req.AccountID).Scan(&balance); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
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
	}
	var reservationArg, externalArg any
	if req.ReservationID != nil {
		id := *req.ReservationID
		t.ReservationID = &id
		reservationArg = id.String()
	}
	if req.ExternalPaymentID != "" {
		ext := req.ExternalPaymentID
		t.ExternalPaymentID = &ext
		externalArg = ext
	}

	const insert = `
		INSERT INTO transactions (id, account_id, amount, kind, description, related_reservation_id, related_external_payment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`
	err = tx.QueryRowContext(ctx, insert,
		t.ID.String(),
		t.AccountID,
		t.Amount,
		string(t.Kind),
		t.Description,
		reservationArg,
		externalArg,
	).Scan(&t.CreatedAt)
	if err != nil {
		if req.ExternalPaymentID != "" && libdb.IsUniqueViolation(err, db.ExternalPaymentConstraint) {
			// another account's lock won the race for this payment id
			_ = tx.Rollback()
			return findByExternalID(ctx, r.db, req.ExternalPaymentID)
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &t, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findByExternalID(ctx context.Context, q queryer, externalID string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE related_external_payment_id = $1`
	return scanTransaction(q.QueryRowContext(ctx, query, externalID))
}

// Balance derives the current balance from the ledger.
func (r *TransactionRepository) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	const query = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id = $1`
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// ListByAccount returns the newest transactions first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	return r.list(ctx, query, accountID, limit)
}

// ListByReservation returns every transaction correlated with the reservation in write order.
func (r *TransactionRepository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE related_reservation_id = $1
		ORDER BY created_at ASC`
	return r.list(ctx, query, reservationID.String())
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}
