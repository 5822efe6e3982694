package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaggo/backend/services/reservation-service/internal/models"
)

func TestMigrate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), conn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS spots").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = Migrate(context.Background(), conn)
	assert.ErrorContains(t, err, "migrate step 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedSpots(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	spots := []models.Spot{
		{ID: "spot-1", Name: "A1", PricePerHour: 1000, Latitude: -23.55, Longitude: -46.63, Available: true},
		{ID: "spot-2", Name: "A2", PricePerHour: 1500, Available: false},
	}
	mock.ExpectBegin()
	for _, s := range spots {
		mock.ExpectExec("INSERT INTO spots").
			WithArgs(s.ID, s.Name, s.PricePerHour, s.Latitude, s.Longitude, s.Available).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, SeedSpots(context.Background(), conn, spots))
	assert.NoError(t, mock.ExpectationsWereMet())
}
