package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/config"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/psharma/securenotes/internal/server/notestore"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
)

// ResourceKind names a quota-governed resource.
type ResourceKind string

const (
	ResourceNoteCount    ResourceKind = "NOTE_COUNT"
	ResourceUploadSizeMB ResourceKind = "UPLOAD_SIZE_MB"
	ResourceAPICall      ResourceKind = "API_CALL"
)

// ParseResourceKind validates a wire value against the closed set.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case ResourceNoteCount, ResourceUploadSizeMB, ResourceAPICall:
		return ResourceKind(s), nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
}

// Unlimited marks a limit with no ceiling.
const Unlimited int64 = -1

// Decision is the outcome of a quota check. Denials always carry both the
// observed usage and the limit so the caller can render an actionable
// message; the action itself is never partially applied.
type Decision struct {
	Allowed bool
	Current int64
	Limit   int64
}

// Enforcer checks proposed actions against the tier's numeric limits.
// Usage counters are owned by the note-storage collaborator, so every check
// is a point-in-time estimate; two concurrent requests may both pass and
// transiently overshoot the limit by one. That race is tolerated by design.
type Enforcer struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	notes   notestore.Client
	quotas  config.QuotaConfig
	timeout time.Duration
	logger  logging.Logger
}

// NewEnforcer constructs an Enforcer from server config.
func NewEnforcer(db *sql.DB, repos repomanager.RepositoryManager, notes notestore.Client, cfg *config.Config, logger logging.Logger) *Enforcer {
	return &Enforcer{
		db:      db,
		repos:   repos,
		notes:   notes,
		quotas:  cfg.Quotas,
		timeout: cfg.QuotaLookupTimeout,
		logger:  logger.With("module", "quota"),
	}
}

// QuotaFor returns the limit row for a tier. Unknown tiers get the FREE
// limits so a corrupted flag never widens access.
func (e *Enforcer) QuotaFor(tier models.Tier) config.TierQuota {
	switch tier {
	case models.TierPro:
		return e.quotas.Pro
	case models.TierEnterprise:
		return e.quotas.Enterprise
	default:
		return e.quotas.Free
	}
}

// Check decides whether the identity may consume amount more of the
// resource. Collaborator timeouts and failures deny the action (fail
// closed); the error is returned alongside so the transport can distinguish
// an operational fault from a genuine quota denial.
func (e *Enforcer) Check(ctx context.Context, userID string, kind ResourceKind, amount int64) (Decision, error) {
	user, err := e.repos.Users(e.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return Decision{}, common.ErrorUnauthorized
		}
		return Decision{}, fmt.Errorf("loading user: %w", err)
	}
	quota := e.QuotaFor(user.SubscriptionTier)

	switch kind {
	case ResourceAPICall:
		if !quota.APIAccess {
			return Decision{Allowed: false, Current: 0, Limit: 0}, nil
		}
		return Decision{Allowed: true, Current: 0, Limit: Unlimited}, nil

	case ResourceNoteCount:
		return e.checkCounted(ctx, userID, quota.MaxNotes, amount, e.notes.CountNotes)

	case ResourceUploadSizeMB:
		return e.checkCounted(ctx, userID, quota.MaxUploadMB, amount, e.uploadMB)

	default:
		return Decision{}, fmt.Errorf("unknown resource kind %q", kind)
	}
}

func (e *Enforcer) uploadMB(ctx context.Context, userID string) (int64, error) {
	bytes, err := e.notes.TotalUploadBytes(ctx, userID)
	if err != nil {
		return 0, err
	}
	return bytes / (1 << 20), nil
}

func (e *Enforcer) checkCounted(ctx context.Context, userID string, limit, amount int64, usage func(context.Context, string) (int64, error)) (Decision, error) {
	if limit == Unlimited {
		return Decision{Allowed: true, Current: 0, Limit: Unlimited}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	current, err := usage(ctx, userID)
	if err != nil {
		e.logger.Warn(ctx, "usage lookup failed, denying", "user_id", userID, "error", err.Error())
		return Decision{Allowed: false, Current: -1, Limit: limit}, fmt.Errorf("usage lookup: %w", err)
	}

	return Decision{
		Allowed: current+amount <= limit,
		Current: current,
		Limit:   limit,
	}, nil
}
