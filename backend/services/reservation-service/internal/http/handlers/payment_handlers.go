package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/service"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

// PaymentHandlers receives payment provider webhooks.
type PaymentHandlers struct {
	credits       *service.CreditService
	secret        []byte
	allowUnsigned bool
	logger        *zap.Logger
}

// NewPaymentHandlers returns handler. Without a secret every delivery is rejected unless
// allowUnsigned is set.
func NewPaymentHandlers(credits *service.CreditService, secret string, allowUnsigned bool, logger *zap.Logger) *PaymentHandlers {
	return &PaymentHandlers{credits: credits, secret: []byte(secret), allowUnsigned: allowUnsigned, logger: logger}
}

type paymentConfirmedRequest struct {
	ExternalPaymentID string `json:"externalPaymentId" validate:"required"`
	AccountID         string `json:"accountId" validate:"required"`
	AmountMinorUnits  int64  `json:"amountMinorUnits" validate:"gt=0,lte=1000000000"`
}

// Confirmed handles POST /webhooks/payments. Redeliveries of the same payment return 200 with
// the original transaction; 5xx asks the provider to retry.
func (h *PaymentHandlers) Confirmed(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !h.verify(r.Header.Get(SignatureHeader), body) {
		h.logger.Warn("payment webhook signature mismatch", zap.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	var req paymentConfirmedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tx, err := h.credits.OnExternalPaymentConfirmed(r.Context(), req.AccountID, req.AmountMinorUnits, req.ExternalPaymentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *PaymentHandlers) verify(signature string, body []byte) bool {
	if len(h.secret) == 0 {
		return h.allowUnsigned
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
