// Package httpapi exposes the security core over HTTP. Handlers translate
// wire requests into service calls and service errors into uniform
// responses; all policy lives in the services.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/account"
	"github.com/psharma/securenotes/internal/server/audit"
	"github.com/psharma/securenotes/internal/server/authz"
	"github.com/psharma/securenotes/internal/server/config"
	"github.com/psharma/securenotes/internal/server/credential"
	"github.com/psharma/securenotes/internal/server/login"
	"github.com/psharma/securenotes/internal/server/mfa"
	"github.com/psharma/securenotes/internal/server/subscription"
)

// Server wires the services to the chi router.
type Server struct {
	addr      string
	secretKey []byte

	db           *sql.DB
	accounts     *account.Service
	logins       *login.Orchestrator
	credentials  *credential.Validator
	mfa          *mfa.Verifier
	evaluator    *authz.Evaluator
	enforcer     *authz.Enforcer
	registry     *subscription.Registry
	synchronizer *subscription.Synchronizer
	signatures   subscription.SignatureVerifier
	recorder     *audit.Recorder

	logger logging.Logger
}

// NewServer constructs the HTTP server.
func NewServer(
	cfg *config.Config,
	db *sql.DB,
	accounts *account.Service,
	logins *login.Orchestrator,
	credentials *credential.Validator,
	verifier *mfa.Verifier,
	evaluator *authz.Evaluator,
	enforcer *authz.Enforcer,
	registry *subscription.Registry,
	synchronizer *subscription.Synchronizer,
	signatures subscription.SignatureVerifier,
	recorder *audit.Recorder,
	logger logging.Logger,
) *Server {
	return &Server{
		addr:         cfg.EndpointAddr,
		secretKey:    []byte(cfg.SecretKey),
		db:           db,
		accounts:     accounts,
		logins:       logins,
		credentials:  credentials,
		mfa:          verifier,
		evaluator:    evaluator,
		enforcer:     enforcer,
		registry:     registry,
		synchronizer: synchronizer,
		signatures:   signatures,
		recorder:     recorder,
		logger:       logger.With("module", "httpapi"),
	}
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/login/mfa", s.handleLoginMFA)
		r.Post("/password/strength", s.handlePasswordStrength)
		r.Post("/password/change-expired", s.handleChangeExpiredPassword)
		r.Post("/payments/webhook", s.handlePaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			// Reachable with an expired password: the forced change flow.
			r.Post("/logout", s.handleLogout)
			r.Post("/password/change", s.handleChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(s.requireCurrentCredentials)

				r.Post("/mfa/setup", s.handleMFASetup)
				r.Post("/mfa/confirm", s.handleMFAConfirm)
				r.Post("/mfa/disable", s.handleMFADisable)
				r.Post("/authz/check", s.handleAuthzCheck)
				r.Post("/quota/check", s.handleQuotaCheck)
				r.Get("/account/tier", s.handleAccountTier)

				r.Group(func(r chi.Router) {
					r.Use(s.requireStaff)
					r.Post("/admin/tier", s.handleAdminSetTier)
					r.Get("/admin/audit", s.handleAdminAudit)
					r.Get("/admin/transactions/{ref}", s.handleAdminTransaction)
				})
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http api listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		errorJSON(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
