package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/http/handlers"
	"vaggo/backend/services/reservation-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Wallet         *handlers.WalletHandlers
	Reservations   *handlers.ReservationHandlers
	Payments       *handlers.PaymentHandlers
	Notifications  *handlers.NotificationHandlers
	Health         http.HandlerFunc
	AllowedOrigins []string
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", handlers.SignatureHeader},
		MaxAge:         300,
	}))

	r.Get("/health", deps.Health)
	r.Post("/webhooks/payments", deps.Payments.Confirmed)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/wallet", deps.Wallet.Wallet)
		r.Get("/wallet/transactions", deps.Wallet.Transactions)
		r.Route("/reservations", deps.Reservations.Routes)
		r.Get("/ws/notifications", deps.Notifications.Subscribe)
	})

	return r
}
