package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/psharma/securenotes/internal/server/session"
)

type ctxKey int

const claimsKey ctxKey = iota

// claimsFrom returns the session claims stored by requireAuth.
func claimsFrom(ctx context.Context) *session.Claims {
	claims, _ := ctx.Value(claimsKey).(*session.Claims)
	return claims
}

// clientOrigin extracts the caller's address for lockout keying and audit
// entries. The X-Forwarded-For hop is trusted because the service sits
// behind the platform's ingress.
func clientOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requireAuth validates the Bearer token and stores its claims in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			errorJSON(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := session.ParseToken(token, s.secretKey)
		if err != nil {
			errorJSON(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireCurrentCredentials blocks authenticated actions behind an expired
// password. The change endpoints stay outside this gate so the forced change
// flow itself remains reachable.
func (s *Server) requireCurrentCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		expired, err := s.credentials.IsExpired(r.Context(), claims.UserID)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, "internal error")
			return
		}
		if expired {
			authErrorJSON(w, common.ErrPasswordExpired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireStaff gates the operator surface. Denials leave an ACCESS_DENIED
// trace.
func (s *Server) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		if claims == nil || !claims.Staff {
			userID := ""
			if claims != nil {
				userID = claims.UserID
			}
			s.recorder.RecordBestEffort(r.Context(), userID, models.ActionAccessDenied, clientOrigin(r), "staff surface: "+r.URL.Path)
			authErrorJSON(w, common.ErrNotAuthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
