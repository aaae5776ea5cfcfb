// Package audit implements the append-only audit trail service. Entries are
// written synchronously for security-relevant events, so the triggering
// operation cannot report success before its trace is durable, and
// best-effort for purely informational ones.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/psharma/securenotes/internal/dbx"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/models"
	auditrepo "github.com/psharma/securenotes/internal/server/repositories/audit"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
)

// Recorder appends audit entries and serves operator queries.
type Recorder struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
	now    func() time.Time
}

// NewRecorder constructs a Recorder using the shared repository manager.
func NewRecorder(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *Recorder {
	return &Recorder{
		db:     db,
		repos:  repos,
		logger: logger.With("module", "audit"),
		now:    time.Now,
	}
}

// Record appends one entry on the given handle. Pass an open transaction to
// make the entry atomic with the triggering mutation; errors propagate so the
// caller fails rather than succeeding without a trace.
func (r *Recorder) Record(ctx context.Context, db dbx.DBTX, userID string, action models.AuditAction, origin, detail string) error {
	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Origin:    origin,
		Detail:    detail,
		CreatedAt: r.now(),
	}
	if err := r.repos.Audit(db).Append(ctx, entry); err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

// RecordBestEffort appends an informational entry, logging failures instead
// of propagating them.
func (r *Recorder) RecordBestEffort(ctx context.Context, userID string, action models.AuditAction, origin, detail string) {
	if err := r.Record(ctx, r.db, userID, action, origin, detail); err != nil {
		r.logger.Error(ctx, "audit entry dropped", "action", string(action), "error", err.Error())
	}
}

// ListRecent returns up to limit entries matching the filter, newest first.
// Intended for operator forensics.
func (r *Recorder) ListRecent(ctx context.Context, filter auditrepo.Filter, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.repos.Audit(r.db).ListRecent(ctx, filter, limit)
}
