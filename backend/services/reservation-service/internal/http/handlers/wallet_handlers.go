package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/service"
)

// WalletHandlers serves balance and transaction history.
type WalletHandlers struct {
	ledger *service.LedgerService
	logger *zap.Logger
}

// NewWalletHandlers returns handler.
func NewWalletHandlers(ledger *service.LedgerService, logger *zap.Logger) *WalletHandlers {
	return &WalletHandlers{ledger: ledger, logger: logger}
}

// Wallet handles GET /wallet.
func (h *WalletHandlers) Wallet(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	wallet, err := h.ledger.Wallet(r.Context(), account)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Transactions handles GET /wallet/transactions.
func (h *WalletHandlers) Transactions(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	txs, err := h.ledger.Transactions(r.Context(), account, queryLimit(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
	})
}
