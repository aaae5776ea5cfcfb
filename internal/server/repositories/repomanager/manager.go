package repomanager

import (
	"context"
	"database/sql"

	"github.com/psharma/securenotes/internal/dbx"
	"github.com/psharma/securenotes/internal/server/repositories/audit"
	"github.com/psharma/securenotes/internal/server/repositories/lockouts"
	"github.com/psharma/securenotes/internal/server/repositories/passwordhistory"
	"github.com/psharma/securenotes/internal/server/repositories/pendinglogins"
	"github.com/psharma/securenotes/internal/server/repositories/subscriptions"
	"github.com/psharma/securenotes/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to either a plain
// connection or an open transaction, plus a schema migration hook.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	PasswordHistory(db dbx.DBTX) passwordhistory.Repository
	Lockouts(db dbx.DBTX) lockouts.Repository
	Audit(db dbx.DBTX) audit.Repository
	Subscriptions(db dbx.DBTX) subscriptions.Repository
	PendingLogins(db dbx.DBTX) pendinglogins.Repository
}
