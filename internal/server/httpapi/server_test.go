package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/dbx"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/audit"
	"github.com/psharma/securenotes/internal/server/config"
	"github.com/psharma/securenotes/internal/server/credential"
	"github.com/psharma/securenotes/internal/server/models"
	auditrepo "github.com/psharma/securenotes/internal/server/repositories/audit"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
	"github.com/psharma/securenotes/internal/server/repositories/users"
	"github.com/psharma/securenotes/internal/server/session"
	"github.com/psharma/securenotes/internal/server/subscription"
)

// -------- test fakes --------

type fakeAuditRepo struct {
	auditrepo.Repository
	entries []*models.AuditEntry
}

func (f *fakeAuditRepo) Append(ctx context.Context, entry *models.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeUsersRepo struct {
	users.Repository
	user *models.User
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.user == nil {
		return nil, common.ErrorNotFound
	}
	return f.user, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	a *fakeAuditRepo
	u *fakeUsersRepo
}

func (m *fakeRepoManager) Audit(db dbx.DBTX) auditrepo.Repository { return m.a }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository     { return m.u }

// -------- helpers --------

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// -------- tests --------

func TestHandlePasswordStrength(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	s := &Server{
		credentials: credential.NewValidator(nil, nil, nil, cfg, testLogger()),
	}

	req := httptest.NewRequest(http.MethodPost, "/api/password/strength", strings.NewReader(`{"password":"weak"}`))
	rec := httptest.NewRecorder()
	s.handlePasswordStrength(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var out struct {
		Rules     credential.Strength `json:"rules"`
		Satisfied bool                `json:"satisfied"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.Satisfied {
		t.Fatal("weak password reported as satisfying the policy")
	}
	if !out.Rules.Lowercase || out.Rules.Uppercase || out.Rules.Length {
		t.Fatalf("unexpected rule report: %+v", out.Rules)
	}
}

func TestRequireAuth(t *testing.T) {
	secret := []byte("test-secret")
	s := &Server{secretKey: secret}

	var gotClaims *session.Claims
	handler := s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = claimsFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", rec.Code)
	}

	// Garbage token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rec.Code)
	}

	// Valid token.
	token, err := session.GenerateToken("u-1", true, secret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d", rec.Code)
	}
	if gotClaims == nil || gotClaims.UserID != "u-1" || !gotClaims.Staff {
		t.Fatalf("claims not stored in context: %+v", gotClaims)
	}
}

func TestRequireStaff(t *testing.T) {
	a := &fakeAuditRepo{}
	db := newMockDB(t)
	s := &Server{
		recorder: audit.NewRecorder(db, &fakeRepoManager{a: a}, testLogger()),
	}

	handler := s.requireStaff(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Non-staff claims.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	ctx := context.WithValue(req.Context(), claimsKey, &session.Claims{UserID: "u-1"})
	handler.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-staff: status %d", rec.Code)
	}
	if len(a.entries) != 1 || a.entries[0].Action != models.ActionAccessDenied {
		t.Fatalf("ACCESS_DENIED entry missing: %+v", a.entries)
	}

	// Staff claims.
	rec = httptest.NewRecorder()
	ctx = context.WithValue(req.Context(), claimsKey, &session.Claims{UserID: "op-1", Staff: true})
	handler.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Fatalf("staff: status %d", rec.Code)
	}
}

func TestRequireCurrentCredentials(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	u := &fakeUsersRepo{user: &models.User{ID: "u-1", PasswordChangedAt: time.Now().Add(-24 * time.Hour)}}
	m := &fakeRepoManager{a: &fakeAuditRepo{}, u: u}
	db := newMockDB(t)
	s := &Server{
		credentials: credential.NewValidator(db, m, nil, cfg, testLogger()),
	}

	handler := s.requireCurrentCredentials(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	ctx := context.WithValue(context.Background(), claimsKey, &session.Claims{UserID: "u-1"})

	// Fresh credential passes through.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/account/tier", nil).WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh credential: status %d", rec.Code)
	}

	// Expired credential is forced into the change flow.
	u.user.PasswordChangedAt = time.Now().Add(-120 * 24 * time.Hour)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/account/tier", nil).WithContext(ctx))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expired credential: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "password change required") {
		t.Fatalf("expired credential: body %q", rec.Body.String())
	}
}

func TestHandlePaymentWebhook_BadSignature(t *testing.T) {
	s := &Server{
		signatures:   subscription.NewHMACVerifier("shared-secret"),
		synchronizer: subscription.NewSynchronizer(nil, nil, testLogger()),
	}

	body := `{"transaction_ref":"txn-1","user_id":"u-1","tier":"PRO","amount_cents":999}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body))
	req.Header.Set("X-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	s.handlePaymentWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged signature: status %d", rec.Code)
	}
}

func TestHandlePaymentWebhook_UnknownPlan(t *testing.T) {
	s := &Server{
		signatures:   subscription.NewHMACVerifier("shared-secret"),
		synchronizer: subscription.NewSynchronizer(nil, nil, testLogger()),
	}

	body := []byte(`{"transaction_ref":"txn-1","user_id":"u-1","tier":"PRO","amount_cents":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-Signature", sign("shared-secret", body))
	rec := httptest.NewRecorder()
	s.handlePaymentWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched amount: status %d", rec.Code)
	}
}

func TestAuthErrorJSON_UniformDenial(t *testing.T) {
	for _, err := range []error{common.ErrorUnauthorized, common.ErrAccountLocked} {
		rec := httptest.NewRecorder()
		authErrorJSON(rec, err)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%v: status %d", err, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), genericAuthMsg) {
			t.Fatalf("%v: body %q must use the generic denial", err, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	authErrorJSON(rec, common.ErrUsernameTaken)
	if rec.Code != http.StatusConflict {
		t.Fatalf("username taken: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	authErrorJSON(rec, &credential.PolicyViolation{Rule: "length"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("policy violation: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	authErrorJSON(rec, common.ErrPasswordExpired)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "password change required") {
		t.Fatalf("password expired: status %d body %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	authErrorJSON(rec, common.ErrNotAuthorized)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("not authorized: status %d", rec.Code)
	}
}

func TestClientOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	if got := clientOrigin(req); got != "192.0.2.7" {
		t.Fatalf("unexpected origin: %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 192.0.2.7")
	if got := clientOrigin(req); got != "203.0.113.9" {
		t.Fatalf("unexpected forwarded origin: %q", got)
	}
}
