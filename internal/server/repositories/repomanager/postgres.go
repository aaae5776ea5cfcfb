// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/psharma/securenotes/internal/dbx"
	"github.com/psharma/securenotes/internal/server/migrations"
	"github.com/psharma/securenotes/internal/server/repositories/audit"
	"github.com/psharma/securenotes/internal/server/repositories/lockouts"
	"github.com/psharma/securenotes/internal/server/repositories/passwordhistory"
	"github.com/psharma/securenotes/internal/server/repositories/pendinglogins"
	"github.com/psharma/securenotes/internal/server/repositories/subscriptions"
	"github.com/psharma/securenotes/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// PasswordHistory returns a passwordhistory.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) PasswordHistory(db dbx.DBTX) passwordhistory.Repository {
	return passwordhistory.NewPostgresRepository(db)
}

// Lockouts returns a lockouts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Lockouts(db dbx.DBTX) lockouts.Repository {
	return lockouts.NewPostgresRepository(db)
}

// Audit returns an audit.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Audit(db dbx.DBTX) audit.Repository {
	return audit.NewPostgresRepository(db)
}

// Subscriptions returns a subscriptions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Subscriptions(db dbx.DBTX) subscriptions.Repository {
	return subscriptions.NewPostgresRepository(db)
}

// PendingLogins returns a pendinglogins.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) PendingLogins(db dbx.DBTX) pendinglogins.Repository {
	return pendinglogins.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
