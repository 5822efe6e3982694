package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind names a reservation lifecycle event pushed to clients.
type NotificationKind string

const (
	NotificationWarn15  NotificationKind = "warn15"
	NotificationWarn5   NotificationKind = "warn5"
	NotificationExpired NotificationKind = "expired"
)

// Notification is the event payload delivered to the account owning the reservation.
type Notification struct {
	ReservationID uuid.UUID        `json:"reservationId"`
	AccountID     string           `json:"-"`
	Kind          NotificationKind `json:"kind"`
	At            time.Time        `json:"at"`
}
