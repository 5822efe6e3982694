package db

import (
	"context"
	"database/sql"
	"fmt"

	libdb "vaggo/backend/libs/db"
	"vaggo/backend/services/reservation-service/internal/models"
)

// NewPostgres returns shared DB connection.
func NewPostgres(dsn string) (*sql.DB, error) {
	return libdb.NewPostgresDB(dsn)
}

// Constraint names referenced by repositories when mapping unique violations.
const (
	ExternalPaymentConstraint = "transactions_external_payment_id_key"
	ActiveSpotConstraint      = "reservations_active_spot_idx"
)

// schema is applied idempotently at startup. Transactions and reservations are append-only
// apart from the reservation status column; balances are always derived.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS spots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price_per_hour BIGINT NOT NULL CHECK (price_per_hour >= 0),
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		available BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		account_id TEXT NOT NULL,
		amount BIGINT NOT NULL CHECK (amount <> 0),
		kind TEXT NOT NULL CHECK (kind IN ('credit', 'debit', 'refund')),
		description TEXT NOT NULL DEFAULT '',
		related_reservation_id UUID,
		related_external_payment_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT ` + ExternalPaymentConstraint + ` UNIQUE (related_external_payment_id)
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_account_idx ON transactions (account_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS transactions_reservation_idx ON transactions (related_reservation_id)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id UUID PRIMARY KEY,
		account_id TEXT NOT NULL,
		vehicle_id TEXT NOT NULL,
		spot_id TEXT NOT NULL,
		transaction_id UUID NOT NULL REFERENCES transactions (id),
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
		price BIGINT NOT NULL CHECK (price >= 0),
		status TEXT NOT NULL CHECK (status IN ('active', 'completed', 'cancelled')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + ActiveSpotConstraint + ` ON reservations (spot_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS reservations_account_idx ON reservations (account_id, created_at DESC)`,
}

// Migrate creates tables and indexes when missing, in one transaction.
func Migrate(ctx context.Context, conn *sql.DB) error {
	return libdb.WithTx(ctx, conn, func(tx *sql.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("db: migrate step %d: %w", i, err)
			}
		}
		return nil
	})
}

// SeedSpots upserts catalog rows. Existing reservations keep the price they were created with.
func SeedSpots(ctx context.Context, conn *sql.DB, spots []models.Spot) error {
	const upsert = `
		INSERT INTO spots (id, name, price_per_hour, latitude, longitude, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    price_per_hour = EXCLUDED.price_per_hour,
		    latitude = EXCLUDED.latitude,
		    longitude = EXCLUDED.longitude,
		    available = EXCLUDED.available
	`
	return libdb.WithTx(ctx, conn, func(tx *sql.Tx) error {
		for _, s := range spots {
			if _, err := tx.ExecContext(ctx, upsert, s.ID, s.Name, s.PricePerHour, s.Latitude, s.Longitude, s.Available); err != nil {
				return fmt.Errorf("db: seed spot %s: %w", s.ID, err)
			}
		}
		return nil
	})
}
