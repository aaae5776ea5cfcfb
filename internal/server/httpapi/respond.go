package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/server/credential"
)

// genericAuthMsg is the single body returned for every credential failure and
// lockout, so responses never reveal whether an account exists or is locked.
const genericAuthMsg = "invalid credentials or account locked"

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// authErrorJSON maps service errors from the authentication and credential
// flows onto HTTP responses.
func authErrorJSON(w http.ResponseWriter, err error) {
	var violation *credential.PolicyViolation
	switch {
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrAccountLocked):
		errorJSON(w, http.StatusUnauthorized, genericAuthMsg)
	case errors.Is(err, common.ErrMfaInvalid):
		errorJSON(w, http.StatusUnauthorized, "invalid code")
	case errors.Is(err, common.ErrMfaNotEnabled):
		errorJSON(w, http.StatusBadRequest, "mfa is not enabled")
	case errors.As(err, &violation):
		errorJSON(w, http.StatusBadRequest, violation.Error())
	case errors.Is(err, common.ErrReusedPassword):
		errorJSON(w, http.StatusBadRequest, "password was used recently")
	case errors.Is(err, common.ErrWrongOldPassword):
		errorJSON(w, http.StatusBadRequest, "old password is incorrect")
	case errors.Is(err, common.ErrUsernameTaken):
		errorJSON(w, http.StatusConflict, "username is taken")
	case errors.Is(err, common.ErrPasswordExpired):
		errorJSON(w, http.StatusForbidden, "password change required")
	case errors.Is(err, common.ErrNotAuthorized):
		errorJSON(w, http.StatusForbidden, "forbidden")
	default:
		errorJSON(w, http.StatusInternalServerError, "internal error")
	}
}
