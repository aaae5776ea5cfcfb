package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/psharma/securenotes/internal/server/subscription"
)

type paymentWebhookPayload struct {
	TransactionRef string `json:"transaction_ref"`
	UserID         string `json:"user_id"`
	Tier           string `json:"tier"`
	AmountCents    int64  `json:"amount_cents"`
}

// handlePaymentWebhook receives payment-gateway callbacks. The signature is
// checked over the raw body before the payload is parsed; replays are
// absorbed by the idempotency ledger downstream.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "unreadable body")
		return
	}
	defer r.Body.Close()

	verified := s.signatures.Verify(body, r.Header.Get("X-Signature"))

	var payload paymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	err = s.synchronizer.OnPaymentConfirmed(r.Context(), subscription.PaymentConfirmation{
		TransactionRef:    payload.TransactionRef,
		UserID:            payload.UserID,
		Tier:              models.Tier(payload.Tier),
		AmountCents:       payload.AmountCents,
		SignatureVerified: verified,
	})
	switch {
	case errors.Is(err, common.ErrPaymentUnverified):
		errorJSON(w, http.StatusUnauthorized, "signature verification failed")
	case errors.Is(err, common.ErrUnknownPaymentPlan):
		errorJSON(w, http.StatusBadRequest, "unknown payment plan")
	case err != nil:
		errorJSON(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
