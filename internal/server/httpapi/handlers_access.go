package httpapi

import (
	"errors"
	"net/http"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/server/authz"
	"github.com/psharma/securenotes/internal/server/models"
)

type authzCheckRequest struct {
	Capability string `json:"capability"`
}

type quotaCheckRequest struct {
	Resource string `json:"resource"`
	Amount   int64  `json:"amount"`
}

func (s *Server) handleAuthzCheck(w http.ResponseWriter, r *http.Request) {
	var in authzCheckRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	capability, err := authz.ParseCapability(in.Capability)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFrom(r.Context())
	allowed, err := s.evaluator.Can(r.Context(), claims.UserID, capability)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !allowed {
		s.recorder.RecordBestEffort(r.Context(), claims.UserID, models.ActionAccessDenied, clientOrigin(r), "capability "+string(capability))
	}

	writeJSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

func (s *Server) handleQuotaCheck(w http.ResponseWriter, r *http.Request) {
	var in quotaCheckRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.Amount <= 0 {
		in.Amount = 1
	}

	kind, err := authz.ParseResourceKind(in.Resource)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFrom(r.Context())
	decision, err := s.enforcer.Check(r.Context(), claims.UserID, kind, in.Amount)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			errorJSON(w, http.StatusUnauthorized, genericAuthMsg)
			return
		}
		// Usage lookup failed; the denial stands but the caller can tell it
		// apart from a real quota hit.
		errorJSON(w, http.StatusServiceUnavailable, "usage lookup unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"allowed": decision.Allowed,
		"current": decision.Current,
		"limit":   decision.Limit,
	})
}

// handleAccountTier reports the caller's tier, subscription status, and the
// limits that tier grants.
func (s *Server) handleAccountTier(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	tier := models.TierFree
	status := models.StatusInactive
	var cycleStart, cycleEnd any

	sub, err := s.registry.Get(r.Context(), claims.UserID)
	switch {
	case err == nil:
		tier = sub.Tier
		status = sub.Status
		if sub.BillingCycleStart != nil {
			cycleStart = *sub.BillingCycleStart
		}
		if sub.BillingCycleEnd != nil {
			cycleEnd = *sub.BillingCycleEnd
		}
	case errors.Is(err, common.ErrorNotFound):
		// Legacy account without a subscription row reads as FREE.
	default:
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	quota := s.enforcer.QuotaFor(tier)
	writeJSON(w, http.StatusOK, map[string]any{
		"tier":                string(tier),
		"status":              string(status),
		"billing_cycle_start": cycleStart,
		"billing_cycle_end":   cycleEnd,
		"quota": map[string]any{
			"max_notes":     quota.MaxNotes,
			"max_upload_mb": quota.MaxUploadMB,
			"api_access":    quota.APIAccess,
		},
	})
}
