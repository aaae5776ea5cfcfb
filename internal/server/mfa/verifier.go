// Package mfa implements time-based one-time-code verification as a login
// sub-state. Enrollment is two-step: the secret is stored immediately but
// mfa_enabled flips only after the first successful confirmation, so a
// mistyped secret cannot lock the user out.
package mfa

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/audit"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
)

// validateOpts allows one step (±30s) of clock drift and no more. Codes
// outside that window must fail.
var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Verifier manages TOTP secrets and validates codes.
type Verifier struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	recorder *audit.Recorder
	issuer   string
	logger   logging.Logger
	now      func() time.Time
}

// NewVerifier constructs a Verifier. issuer is the name shown in
// authenticator apps.
func NewVerifier(db *sql.DB, repos repomanager.RepositoryManager, recorder *audit.Recorder, issuer string, logger logging.Logger) *Verifier {
	return &Verifier{
		db:       db,
		repos:    repos,
		recorder: recorder,
		issuer:   issuer,
		logger:   logger.With("module", "mfa"),
		now:      time.Now,
	}
}

// Enroll generates and stores a fresh secret for the user and returns it
// together with the otpauth provisioning URI. MFA stays disabled until
// Confirm succeeds.
func (v *Verifier) Enroll(ctx context.Context, userID string) (secret, uri string, err error) {
	user, err := v.repos.Users(v.db).GetByID(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("loading user: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.issuer,
		AccountName: user.Username,
	})
	if err != nil {
		return "", "", fmt.Errorf("generating totp secret: %w", err)
	}

	if err := v.repos.Users(v.db).SetMFASecret(ctx, userID, key.Secret()); err != nil {
		return "", "", fmt.Errorf("storing totp secret: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

// Confirm validates the first code against the enrolled secret and, on
// success, enables MFA for the user.
func (v *Verifier) Confirm(ctx context.Context, userID, code, origin string) error {
	user, err := v.repos.Users(v.db).GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if user.MFASecret == "" {
		return common.ErrMfaNotEnabled
	}
	if !v.ValidateAt(user.MFASecret, code, v.now()) {
		return common.ErrMfaInvalid
	}

	if err := v.repos.Users(v.db).SetMFAEnabled(ctx, userID, true); err != nil {
		return fmt.Errorf("enabling mfa: %w", err)
	}
	v.recorder.RecordBestEffort(ctx, userID, models.ActionMFAEnabled, origin, "mfa enabled")
	v.logger.Info(ctx, "mfa enabled", "user_id", userID)
	return nil
}

// Verify checks a code for an already-enabled user.
func (v *Verifier) Verify(ctx context.Context, userID, code string) (bool, error) {
	user, err := v.repos.Users(v.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("loading user: %w", err)
	}
	if !user.MFAEnabled || user.MFASecret == "" {
		return false, common.ErrMfaNotEnabled
	}
	return v.ValidateAt(user.MFASecret, code, v.now()), nil
}

// ValidateAt checks a code against a secret at an explicit instant.
func (v *Verifier) ValidateAt(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, validateOpts)
	return err == nil && ok
}

// Disable clears the secret and the enabled flag.
func (v *Verifier) Disable(ctx context.Context, userID, origin string) error {
	if err := v.repos.Users(v.db).ClearMFA(ctx, userID); err != nil {
		return fmt.Errorf("disabling mfa: %w", err)
	}
	v.recorder.RecordBestEffort(ctx, userID, models.ActionMFADisabled, origin, "mfa disabled")
	v.logger.Info(ctx, "mfa disabled", "user_id", userID)
	return nil
}
