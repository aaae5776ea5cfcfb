package httpapi

import (
	"net/http"

	"github.com/psharma/securenotes/internal/common"
)

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleMFASetup(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	secret, uri, err := s.mfa.Enroll(r.Context(), claims.UserID)
	if err != nil {
		authErrorJSON(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"secret": secret,
		"uri":    uri,
	})
}

func (s *Server) handleMFAConfirm(w http.ResponseWriter, r *http.Request) {
	var in mfaCodeRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	claims := claimsFrom(r.Context())
	if err := s.mfa.Confirm(r.Context(), claims.UserID, in.Code, clientOrigin(r)); err != nil {
		authErrorJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleMFADisable requires a current code so a stolen session alone cannot
// strip the second factor.
func (s *Server) handleMFADisable(w http.ResponseWriter, r *http.Request) {
	var in mfaCodeRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	claims := claimsFrom(r.Context())
	ok, err := s.mfa.Verify(r.Context(), claims.UserID, in.Code)
	if err != nil {
		authErrorJSON(w, err)
		return
	}
	if !ok {
		authErrorJSON(w, common.ErrMfaInvalid)
		return
	}

	if err := s.mfa.Disable(r.Context(), claims.UserID, clientOrigin(r)); err != nil {
		authErrorJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
