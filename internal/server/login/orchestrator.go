// Package login drives the authentication state machine: lockout gate,
// password verification, the optional MFA sub-state, credential-expiry
// interception, and session issuance. Every failure leaves the caller with
// the same generic denial so responses never reveal whether a username
// exists.
package login

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/audit"
	"github.com/psharma/securenotes/internal/server/config"
	"github.com/psharma/securenotes/internal/server/lockout"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
	"github.com/psharma/securenotes/internal/server/session"
	"golang.org/x/crypto/bcrypt"
)

// Status is the terminal state of a login step.
type Status string

const (
	// StatusSuccess means a session token was issued.
	StatusSuccess Status = "SUCCESS"
	// StatusMFARequired means the password was accepted and a single-use
	// marker was issued for the MFA step.
	StatusMFARequired Status = "MFA_REQUIRED"
	// StatusPasswordExpired means authentication succeeded but the credential
	// is past its expiry; a password change must happen before a session is
	// issued.
	StatusPasswordExpired Status = "PASSWORD_EXPIRED"
)

// Result is the outcome of a successful login step. Failures are errors.
type Result struct {
	Status Status
	UserID string
	// Token is set only for StatusSuccess.
	Token string
	// Marker is set only for StatusMFARequired.
	Marker string
}

// CredentialChecker is the slice of the credential service the orchestrator
// needs.
type CredentialChecker interface {
	VerifyPassword(hash, password string) bool
	ExpiredFor(user *models.User) bool
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword, origin string) error
}

// CodeValidator checks a TOTP code against a secret at an instant.
type CodeValidator interface {
	ValidateAt(secret, code string, at time.Time) bool
}

// AttemptTracker is the lockout gate consulted around every attempt.
type AttemptTracker interface {
	Check(ctx context.Context, identityKey, origin string) (lockout.Decision, error)
	Fail(ctx context.Context, identityKey, origin string) error
	Clear(ctx context.Context, identityKey, origin string) error
}

// Orchestrator runs the login flow end to end.
type Orchestrator struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	credentials CredentialChecker
	codes       CodeValidator
	tracker     AttemptTracker
	recorder    *audit.Recorder
	secretKey   []byte
	tokenTTL    time.Duration
	markerTTL   time.Duration
	logger      logging.Logger
	now         func() time.Time
	// dummyHash is burned on unknown usernames so the response time does not
	// reveal whether the account exists.
	dummyHash string
}

// NewOrchestrator constructs an Orchestrator from server config.
func NewOrchestrator(
	db *sql.DB,
	repos repomanager.RepositoryManager,
	credentials CredentialChecker,
	codes CodeValidator,
	tracker AttemptTracker,
	recorder *audit.Recorder,
	cfg *config.Config,
	logger logging.Logger,
) *Orchestrator {
	dummy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	return &Orchestrator{
		db:          db,
		repos:       repos,
		credentials: credentials,
		codes:       codes,
		tracker:     tracker,
		recorder:    recorder,
		secretKey:   []byte(cfg.SecretKey),
		tokenTTL:    cfg.AccessTokenValidity,
		markerTTL:   cfg.PendingLoginTTL,
		logger:      logger.With("module", "login"),
		now:         time.Now,
		dummyHash:   string(dummy),
	}
}

// identityKey normalizes a submitted username into the lockout key. Lockout
// state is keyed by the submitted name, not a resolved user id, so attempts
// against nonexistent accounts are throttled too.
func identityKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Authenticate runs the password step. The lockout gate is checked before any
// credential work, a locked pair costs no hashing and reveals nothing.
func (o *Orchestrator) Authenticate(ctx context.Context, username, password, origin string) (*Result, error) {
	key := identityKey(username)

	decision, err := o.tracker.Check(ctx, key, origin)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if !decision.Allowed {
		return nil, common.ErrAccountLocked
	}

	user, err := o.repos.Users(o.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Burn a hash comparison so unknown and known usernames take the
			// same time to reject.
			o.credentials.VerifyPassword(o.dummyHash, password)
			if rerr := o.recordFailure(ctx, key, origin, "", "unknown username"); rerr != nil {
				return nil, rerr
			}
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if !o.credentials.VerifyPassword(user.PasswordHash, password) {
		if rerr := o.recordFailure(ctx, key, origin, user.ID, "wrong password"); rerr != nil {
			return nil, rerr
		}
		return nil, common.ErrorUnauthorized
	}

	if user.MFAEnabled {
		marker, err := o.issueMarker(ctx, user.ID, origin)
		if err != nil {
			return nil, common.ErrorInternal
		}
		return &Result{Status: StatusMFARequired, UserID: user.ID, Marker: marker}, nil
	}

	return o.finish(ctx, user, key, origin)
}

// SubmitMFA runs the second step. The marker is consumed atomically up front,
// so a wrong code spends it and the user restarts from the password step.
func (o *Orchestrator) SubmitMFA(ctx context.Context, marker, code, origin string) (*Result, error) {
	pending, err := o.repos.PendingLogins(o.db).Consume(ctx, marker, o.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	user, err := o.repos.Users(o.db).GetByID(ctx, pending.UserID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	key := identityKey(user.Username)

	decision, err := o.tracker.Check(ctx, key, origin)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if !decision.Allowed {
		return nil, common.ErrAccountLocked
	}

	if !user.MFAEnabled || user.MFASecret == "" {
		return nil, common.ErrMfaNotEnabled
	}
	if !o.codes.ValidateAt(user.MFASecret, code, o.now()) {
		if rerr := o.recordFailure(ctx, key, origin, user.ID, "invalid mfa code"); rerr != nil {
			return nil, rerr
		}
		return nil, common.ErrMfaInvalid
	}

	return o.finish(ctx, user, key, origin)
}

// ChangeExpiredPassword rotates a credential for a user without a session,
// reached after a login ended in StatusPasswordExpired. It is a
// credential-verifying entry point, so it runs behind the same lockout gate
// as Authenticate: locked pairs are refused before any hashing, a wrong old
// password counts toward the threshold, and unknown usernames get the same
// generic denial as wrong passwords.
func (o *Orchestrator) ChangeExpiredPassword(ctx context.Context, username, oldPassword, newPassword, origin string) error {
	key := identityKey(username)

	decision, err := o.tracker.Check(ctx, key, origin)
	if err != nil {
		return common.ErrorInternal
	}
	if !decision.Allowed {
		return common.ErrAccountLocked
	}

	user, err := o.repos.Users(o.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			o.credentials.VerifyPassword(o.dummyHash, oldPassword)
			if rerr := o.recordFailure(ctx, key, origin, "", "unknown username"); rerr != nil {
				return rerr
			}
			return common.ErrorUnauthorized
		}
		return common.ErrorInternal
	}

	if !o.credentials.VerifyPassword(user.PasswordHash, oldPassword) {
		if rerr := o.recordFailure(ctx, key, origin, user.ID, "wrong old password"); rerr != nil {
			return rerr
		}
		return common.ErrorUnauthorized
	}

	if err := o.credentials.ChangePassword(ctx, user.ID, oldPassword, newPassword, origin); err != nil {
		if errors.Is(err, common.ErrWrongOldPassword) {
			return common.ErrorUnauthorized
		}
		return err
	}

	if err := o.tracker.Clear(ctx, key, origin); err != nil {
		o.logger.Error(ctx, "lockout clear failed", "identity_key", key, "error", err.Error())
	}
	return nil
}

// PurgeExpiredMarkers deletes pending-login markers past their TTL. Expired
// markers are already unredeemable; this keeps the table from growing.
func (o *Orchestrator) PurgeExpiredMarkers(ctx context.Context) (int64, error) {
	return o.repos.PendingLogins(o.db).PurgeExpired(ctx, o.now())
}

// Logout records the end of a session. Tokens are stateless, so this is an
// audit event only.
func (o *Orchestrator) Logout(ctx context.Context, userID, origin string) {
	o.recorder.RecordBestEffort(ctx, userID, models.ActionLogout, origin, "logged out")
}

// finish completes an authenticated attempt: expiry interception, lockout
// reset, the synchronous LOGIN audit entry, and token issuance.
func (o *Orchestrator) finish(ctx context.Context, user *models.User, key, origin string) (*Result, error) {
	if o.credentials.ExpiredFor(user) {
		return &Result{Status: StatusPasswordExpired, UserID: user.ID}, nil
	}

	if err := o.tracker.Clear(ctx, key, origin); err != nil {
		o.logger.Error(ctx, "lockout clear failed", "identity_key", key, "error", err.Error())
	}

	if err := o.recorder.Record(ctx, o.db, user.ID, models.ActionLogin, origin, "logged in"); err != nil {
		// Success without a durable trace is not success.
		return nil, common.ErrorInternal
	}

	token, err := session.GenerateToken(user.ID, user.IsStaff, o.secretKey, o.tokenTTL)
	if err != nil {
		return nil, common.ErrorInternal
	}

	o.logger.Info(ctx, "login succeeded", "user_id", user.ID, "origin", origin)
	return &Result{Status: StatusSuccess, UserID: user.ID, Token: token}, nil
}

func (o *Orchestrator) issueMarker(ctx context.Context, userID, origin string) (string, error) {
	marker := uuid.NewString()
	err := o.repos.PendingLogins(o.db).Create(ctx, &models.PendingLogin{
		Marker:    marker,
		UserID:    userID,
		Origin:    origin,
		ExpiresAt: o.now().Add(o.markerTTL),
		CreatedAt: o.now(),
	})
	if err != nil {
		return "", fmt.Errorf("issuing login marker: %w", err)
	}
	return marker, nil
}

// recordFailure counts the attempt and writes the FAILED_LOGIN entry. The
// entry is synchronous: a denial must not be reported before its trace is
// durable, so an append failure surfaces as ErrorInternal.
func (o *Orchestrator) recordFailure(ctx context.Context, key, origin, userID, detail string) error {
	if err := o.tracker.Fail(ctx, key, origin); err != nil {
		o.logger.Error(ctx, "recording failed attempt", "identity_key", key, "error", err.Error())
	}
	if err := o.recorder.Record(ctx, o.db, userID, models.ActionFailedLogin, origin, detail); err != nil {
		return common.ErrorInternal
	}
	return nil
}
