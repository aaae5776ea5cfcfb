// Package authz maps principals to capability decisions and enforces
// per-tier resource quotas.
package authz

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
)

// Evaluator answers yes/no capability questions. It reads the fast-path
// tier flag on the identity, never the authoritative subscription record,
// to keep the hot path to a single row lookup.
type Evaluator struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *Evaluator {
	return &Evaluator{db: db, repos: repos, logger: logger.With("module", "authz")}
}

// Can reports whether the identity holds the capability. A false result
// carries no detail; callers translate it into a uniform denial.
func (e *Evaluator) Can(ctx context.Context, userID string, capability Capability) (bool, error) {
	user, err := e.repos.Users(e.db).GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("loading user: %w", err)
	}
	return Satisfies(user.SubscriptionTier, user.IsStaff, capability), nil
}

// Satisfies is the pure predicate behind Can. STAFF is independent of tier;
// the tier capabilities follow the FREE < PRO < ENTERPRISE order.
func Satisfies(tier models.Tier, staff bool, capability Capability) bool {
	switch capability {
	case CapabilityFreeOnly:
		return tier.Rank() >= models.TierFree.Rank()
	case CapabilityProOrAbove:
		return tier.Rank() >= models.TierPro.Rank()
	case CapabilityEnterpriseOnly:
		return tier.Rank() >= models.TierEnterprise.Rank()
	case CapabilityStaff:
		return staff
	default:
		return false
	}
}
