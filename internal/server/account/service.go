// Package account handles identity registration.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/dbx"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/audit"
	"github.com/psharma/securenotes/internal/server/credential"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
)

// Service registers new identities. The user row, its FREE subscription
// record, and the REGISTER audit entry commit as one transaction.
type Service struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	credentials *credential.Validator
	recorder    *audit.Recorder
	logger      logging.Logger
	now         func() time.Time
}

// NewService constructs a Service.
func NewService(db *sql.DB, repos repomanager.RepositoryManager, credentials *credential.Validator, recorder *audit.Recorder, logger logging.Logger) *Service {
	return &Service{
		db:          db,
		repos:       repos,
		credentials: credentials,
		recorder:    recorder,
		logger:      logger.With("module", "account"),
		now:         time.Now,
	}
}

// Register creates a new identity on the FREE tier. The username keeps its
// submitted casing; uniqueness is enforced by the store.
func (s *Service) Register(ctx context.Context, username, password, origin string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	if err := s.credentials.Policy().Validate(password); err != nil {
		return nil, err
	}

	hash, err := s.credentials.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	// The id and creation timestamp come back from the store's RETURNING
	// clause.
	now := s.now()
	user := &models.User{
		Username:          username,
		PasswordHash:      hash,
		PasswordChangedAt: now,
		SubscriptionTier:  models.TierFree,
		CreatedAt:         now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repos.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		user = created

		if err := s.repos.Subscriptions(tx).Create(ctx, &models.Subscription{
			UserID:    user.ID,
			Tier:      models.TierFree,
			Status:    models.StatusInactive,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		return s.recorder.Record(ctx, tx, user.ID, models.ActionRegister, origin, "account registered")
	})
	if err != nil {
		if errors.Is(err, common.ErrUsernameTaken) {
			return nil, common.ErrUsernameTaken
		}
		return nil, fmt.Errorf("registering account: %w", err)
	}

	s.logger.Info(ctx, "account registered", "user_id", user.ID)
	return user, nil
}
