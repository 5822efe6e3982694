package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled
}

// Reservation is a confirmed claim on a spot for a fixed window. Price is fixed at creation.
type Reservation struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	AccountID       string            `db:"account_id" json:"accountId"`
	VehicleID       string            `db:"vehicle_id" json:"vehicleId"`
	SpotID          string            `db:"spot_id" json:"spotId"`
	TransactionID   uuid.UUID         `db:"transaction_id" json:"transactionId"`
	StartTime       time.Time         `db:"start_time" json:"startTime"`
	EndTime         time.Time         `db:"end_time" json:"endTime"`
	DurationMinutes int               `db:"duration_minutes" json:"durationMinutes"`
	Price           int64             `db:"price" json:"price"`
	Status          ReservationStatus `db:"status" json:"status"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updatedAt"`
}

// Remaining returns the time left until EndTime at now, never negative.
func (r Reservation) Remaining(now time.Time) time.Duration {
	if d := r.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}
