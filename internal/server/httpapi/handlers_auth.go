package httpapi

import (
	"net/http"

	"github.com/psharma/securenotes/internal/server/login"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type mfaSubmitRequest struct {
	Marker string `json:"marker"`
	Code   string `json:"code"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type changeExpiredPasswordRequest struct {
	Username    string `json:"username"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type passwordStrengthRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
	Marker string `json:"marker,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.Username == "" || in.Password == "" {
		errorJSON(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := s.accounts.Register(r.Context(), in.Username, in.Password, clientOrigin(r))
	if err != nil {
		authErrorJSON(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":       user.ID,
		"username": user.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := s.logins.Authenticate(r.Context(), in.Username, in.Password, clientOrigin(r))
	if err != nil {
		authErrorJSON(w, err)
		return
	}
	writeLoginResult(w, result)
}

func (s *Server) handleLoginMFA(w http.ResponseWriter, r *http.Request) {
	var in mfaSubmitRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := s.logins.SubmitMFA(r.Context(), in.Marker, in.Code, clientOrigin(r))
	if err != nil {
		authErrorJSON(w, err)
		return
	}
	writeLoginResult(w, result)
}

func writeLoginResult(w http.ResponseWriter, result *login.Result) {
	writeJSON(w, http.StatusOK, loginResponse{
		Status: string(result.Status),
		Token:  result.Token,
		Marker: result.Marker,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	s.logins.Logout(r.Context(), claims.UserID, clientOrigin(r))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	claims := claimsFrom(r.Context())
	if err := s.credentials.ChangePassword(r.Context(), claims.UserID, in.OldPassword, in.NewPassword, clientOrigin(r)); err != nil {
		authErrorJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleChangeExpiredPassword serves the forced-change step after a login
// ended in PASSWORD_EXPIRED. It authenticates with the old password instead
// of a token and runs behind the same lockout gate as login.
func (s *Server) handleChangeExpiredPassword(w http.ResponseWriter, r *http.Request) {
	var in changeExpiredPasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.logins.ChangeExpiredPassword(r.Context(), in.Username, in.OldPassword, in.NewPassword, clientOrigin(r)); err != nil {
		authErrorJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handlePasswordStrength gives real-time rule feedback for signup forms. It
// is stateless and unauthenticated.
func (s *Server) handlePasswordStrength(w http.ResponseWriter, r *http.Request) {
	var in passwordStrengthRequest
	if err := decodeJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	strength := s.credentials.Policy().Inspect(in.Password)
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":     strength,
		"satisfied": strength.Satisfied(),
	})
}
