package repository

import (
	"context"
	"database/sql"
	"errors"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

// SpotRepository reads the spot catalog table. The service never writes spot pricing.
type SpotRepository struct {
	db *sql.DB
}

// NewSpotRepository returns repository.
func NewSpotRepository(db *sql.DB) *SpotRepository {
	return &SpotRepository{db: db}
}

// GetSpot returns the current catalog row or errs.ErrNotFound.
func (r *SpotRepository) GetSpot(ctx context.Context, id string) (*models.Spot, error) {
	const query = `
		SELECT id, name, price_per_hour, latitude, longitude, available
		FROM spots
		WHERE id = $1
	`
	var s models.Spot
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.Name,
		&s.PricePerHour,
		&s.Latitude,
		&s.Longitude,
		&s.Available,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
