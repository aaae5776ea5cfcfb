// Package credential enforces the password policy and manages the credential
// lifecycle: hashing, history, rotation, and expiry.
package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/dbx"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/audit"
	"github.com/psharma/securenotes/internal/server/config"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// Validator verifies and rotates credentials.
type Validator struct {
	db           *sql.DB
	repos        repomanager.RepositoryManager
	recorder     *audit.Recorder
	policy       Policy
	historyDepth int
	expiryDays   int
	bcryptCost   int
	logger       logging.Logger
	now          func() time.Time
}

// NewValidator constructs a Validator from server config.
func NewValidator(db *sql.DB, repos repomanager.RepositoryManager, recorder *audit.Recorder, cfg *config.Config, logger logging.Logger) *Validator {
	return &Validator{
		db:           db,
		repos:        repos,
		recorder:     recorder,
		policy:       Policy{MinLength: cfg.PasswordMinLength},
		historyDepth: cfg.PasswordHistoryDepth,
		expiryDays:   cfg.PasswordExpiryDays,
		bcryptCost:   cfg.BcryptCost,
		logger:       logger.With("module", "credential"),
		now:          time.Now,
	}
}

// Policy returns the active complexity policy.
func (v *Validator) Policy() Policy {
	return v.policy
}

// HashPassword hashes a candidate with the configured work factor.
func (v *Validator) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
func (v *Validator) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateNewPassword checks a candidate against the complexity policy and
// the user's recent password history. The current password counts as reuse;
// anything older than the configured depth has been evicted and is allowed
// again.
func (v *Validator) ValidateNewPassword(ctx context.Context, userID, candidate string) error {
	if err := v.policy.Validate(candidate); err != nil {
		return err
	}

	user, err := v.repos.Users(v.db).GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if v.VerifyPassword(user.PasswordHash, candidate) {
		return common.ErrReusedPassword
	}

	hashes, err := v.repos.PasswordHistory(v.db).ListRecent(ctx, userID, v.historyDepth)
	if err != nil {
		return fmt.Errorf("loading password history: %w", err)
	}
	for _, h := range hashes {
		if v.VerifyPassword(h, candidate) {
			return common.ErrReusedPassword
		}
	}
	return nil
}

// ChangePassword rotates the credential after verifying the old password and
// the policy/history rules. The history push, eviction, hash update, and
// PASSWORD_CHANGE audit entry commit as one transaction.
func (v *Validator) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, origin string) error {
	user, err := v.repos.Users(v.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return fmt.Errorf("loading user: %w", err)
	}
	if !v.VerifyPassword(user.PasswordHash, oldPassword) {
		return common.ErrWrongOldPassword
	}

	if err := v.ValidateNewPassword(ctx, userID, newPassword); err != nil {
		return err
	}

	newHash, err := v.HashPassword(newPassword)
	if err != nil {
		return common.ErrorInternal
	}

	changedAt := v.now()
	err = dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		history := v.repos.PasswordHistory(tx)
		if err := history.Add(ctx, userID, user.PasswordHash); err != nil {
			return err
		}
		if err := history.Prune(ctx, userID, v.historyDepth); err != nil {
			return err
		}
		if err := v.repos.Users(tx).UpdatePassword(ctx, userID, newHash, changedAt); err != nil {
			return err
		}
		return v.recorder.Record(ctx, tx, userID, models.ActionPasswordChange, origin, "password changed")
	})
	if err != nil {
		return fmt.Errorf("changing password: %w", err)
	}

	v.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// IsExpired reports whether the credential is older than the configured
// expiry. Expired credentials force a change flow before any other
// authenticated action proceeds.
func (v *Validator) IsExpired(ctx context.Context, userID string) (bool, error) {
	user, err := v.repos.Users(v.db).GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("loading user: %w", err)
	}
	return v.expired(user), nil
}

func (v *Validator) expired(user *models.User) bool {
	if v.expiryDays <= 0 {
		return false
	}
	deadline := user.PasswordChangedAt.Add(time.Duration(v.expiryDays) * 24 * time.Hour)
	return v.now().After(deadline)
}

// ExpiredFor is a helper for callers that already hold the user row.
func (v *Validator) ExpiredFor(user *models.User) bool {
	return v.expired(user)
}
