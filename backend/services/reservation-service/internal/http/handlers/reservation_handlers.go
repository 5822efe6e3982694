package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/service"
)

// ReservationHandlers exposes the reservation saga.
type ReservationHandlers struct {
	reservations *service.ReservationService
	logger       *zap.Logger
}

// NewReservationHandlers returns handler.
func NewReservationHandlers(reservations *service.ReservationService, logger *zap.Logger) *ReservationHandlers {
	return &ReservationHandlers{reservations: reservations, logger: logger}
}

// Routes registers the reservation endpoints.
func (h *ReservationHandlers) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/active", h.Active)
	r.Post("/{id}/end", h.End)
}

// Create handles POST /reservations.
func (h *ReservationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	var req service.ReserveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AccountID = account

	res, err := h.reservations.Reserve(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// List handles GET /reservations.
func (h *ReservationHandlers) List(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	list, err := h.reservations.History(r.Context(), account, queryLimit(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reservations": list,
	})
}

// Active handles GET /reservations/active.
func (h *ReservationHandlers) Active(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	list, err := h.reservations.Active(r.Context(), account)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reservations": list,
	})
}

// End handles POST /reservations/{id}/end.
func (h *ReservationHandlers) End(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}
	res, err := h.reservations.EndReservation(r.Context(), account, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
