package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	libdb "vaggo/backend/libs/db"
	"vaggo/backend/services/reservation-service/internal/db"
	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

const reservationColumns = `id, account_id, vehicle_id, spot_id, transaction_id, start_time, end_time, duration_minutes, price, status, created_at, updated_at`

// ReservationRepository persists reservations. The partial unique index on active spot ids
// backs the spot guard.
type ReservationRepository struct {
	db *sql.DB
}

// NewReservationRepository returns repository.
func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func scanReservation(s scanner) (*models.Reservation, error) {
	var (
		r      models.Reservation
		status string
	)
	if err := s.Scan(
		&r.ID,
		&r.AccountID,
		&r.VehicleID,
		&r.SpotID,
		&r.TransactionID,
		&r.StartTime,
		&r.EndTime,
		&r.DurationMinutes,
		&r.Price,
		&status,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Status = models.ReservationStatus(status)
	return &r, nil
}

// Create inserts the reservation. A concurrent active reservation on the same spot yields
// errs.ErrSpotUnavailable.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	const query = `
		INSERT INTO reservations (id, account_id, vehicle_id, spot_id, transaction_id, start_time, end_time, duration_minutes, price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		res.ID.String(),
		res.AccountID,
		res.VehicleID,
		res.SpotID,
		res.TransactionID.String(),
		res.StartTime,
		res.EndTime,
		res.DurationMinutes,
		res.Price,
		string(res.Status),
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if libdb.IsUniqueViolation(err, db.ActiveSpotConstraint) {
			return fmt.Errorf("spot %s: %w", res.SpotID, errs.ErrSpotUnavailable)
		}
		return err
	}
	return nil
}

// Get returns the reservation or errs.ErrNotFound.
func (r *ReservationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return res, err
}

// Transition moves an active reservation to status. A reservation already in a terminal
// state is returned unchanged.
func (r *ReservationRepository) Transition(ctx context.Context, id uuid.UUID, status models.ReservationStatus) (*models.Reservation, error) {
	query := `
		UPDATE reservations
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING ` + reservationColumns
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, id.String(), string(status)))
	if errors.Is(err, sql.ErrNoRows) {
		return r.Get(ctx, id)
	}
	return res, err
}

// ListByAccount returns the account's reservations, newest first.
func (r *ReservationRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	return r.list(ctx, query, accountID, limit)
}

// ActiveByAccount returns the account's active reservations, newest first.
func (r *ReservationRepository) ActiveByAccount(ctx context.Context, accountID string) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE account_id = $1 AND status = 'active'
		ORDER BY created_at DESC`
	return r.list(ctx, query, accountID)
}

// ListActive returns every active reservation ordered by end time.
func (r *ReservationRepository) ListActive(ctx context.Context) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'active'
		ORDER BY end_time ASC`
	return r.list(ctx, query)
}

// HasActiveForSpot reports whether an active reservation references the spot.
func (r *ReservationRepository) HasActiveForSpot(ctx context.Context, spotID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM reservations WHERE spot_id = $1 AND status = 'active')`
	if err := r.db.QueryRowContext(ctx, query, spotID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
