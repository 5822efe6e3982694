package handlers

import (
	"net/http"

	"vaggo/backend/services/reservation-service/internal/notify"
)

// NotificationHandlers upgrades clients onto the notification hub.
type NotificationHandlers struct {
	hub *notify.Hub
}

// NewNotificationHandlers returns handler.
func NewNotificationHandlers(hub *notify.Hub) *NotificationHandlers {
	return &NotificationHandlers{hub: hub}
}

// Subscribe handles GET /ws/notifications.
func (h *NotificationHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	h.hub.ServeWS(w, r, account)
}
