package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/server/models"
	auditrepo "github.com/psharma/securenotes/internal/server/repositories/audit"
	"github.com/psharma/securenotes/internal/server/subscription"
)

type adminSetTierRequest struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
	Status string `json:"status"`
}

// handleAdminSetTier is the operator override for subscription state. It
// goes through the same atomic SetTier path as payment confirmations.
func (s *Server) handleAdminSetTier(w http.ResponseWriter, r *http.Request) {
	var in adminSetTierRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.UserID == "" {
		errorJSON(w, http.StatusBadRequest, "user_id required")
		return
	}

	tier := models.Tier(in.Tier)
	if !tier.Valid() {
		errorJSON(w, http.StatusBadRequest, "unknown tier")
		return
	}
	status := models.SubscriptionStatus(in.Status)
	if in.Status == "" {
		status = models.StatusActive
	}
	if !status.Valid() {
		errorJSON(w, http.StatusBadRequest, "unknown status")
		return
	}

	claims := claimsFrom(r.Context())
	err := s.registry.SetTier(r.Context(), subscription.SetTierParams{
		UserID: in.UserID,
		Tier:   tier,
		Status: status,
		Actor:  "admin:" + claims.UserID,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflictingUpdate) {
			errorJSON(w, http.StatusConflict, "conflicting update, retry")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleAdminTransaction looks up one processed payment reference in the
// idempotency ledger.
func (s *Server) handleAdminTransaction(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	txn, err := s.registry.Transaction(r.Context(), ref)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			errorJSON(w, http.StatusNotFound, "unknown transaction reference")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ref":          txn.Ref,
		"user_id":      txn.UserID,
		"tier":         string(txn.Tier),
		"amount_cents": txn.AmountCents,
		"processed_at": txn.ProcessedAt,
	})
}

// handleAdminAudit serves operator forensics over the append-only trail.
// Filters: ?user_id=…&action=…&limit=….
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	filter := auditrepo.Filter{
		UserID: q.Get("user_id"),
		Action: models.AuditAction(q.Get("action")),
	}

	entries, err := s.recorder.ListRecent(r.Context(), filter, limit)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"id":         e.ID,
			"user_id":    e.UserID,
			"action":     string(e.Action),
			"origin":     e.Origin,
			"detail":     e.Detail,
			"created_at": e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
