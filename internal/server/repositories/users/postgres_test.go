package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func userRows(changedAt, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "password_hash", "password_changed_at",
		"mfa_secret", "mfa_enabled", "is_staff", "subscription_tier", "created_at",
	}).AddRow("u-1", "alice", "$2a$hash", changedAt, "", false, false, "FREE", createdAt)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^\s*INSERT\s+INTO\s+users\s*\(username,\s*password_hash,\s*password_changed_at,\s*subscription_tier\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at\s*$`

	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow("u-1", now)
	mock.ExpectQuery(q).
		WithArgs("alice", "$2a$hash", now, models.TierFree).
		WillReturnRows(rows)

	u := &models.User{Username: "alice", PasswordHash: "$2a$hash", PasswordChangedAt: now, SubscriptionTier: models.TierFree}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u-1" || got.Username != "alice" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestCreate_DuplicateUsername(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("alice", "$2a$hash", now, models.TierFree).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.Create(context.Background(), &models.User{
		Username: "alice", PasswordHash: "$2a$hash", PasswordChangedAt: now, SubscriptionTier: models.TierFree,
	})
	if !errors.Is(err, common.ErrUsernameTaken) {
		t.Fatalf("want ErrUsernameTaken, got %v", err)
	}
}

func TestGetByUsername_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT\s+id,\s*username,.*FROM\s+users\s+WHERE\s+username\s*=\s*\$1`).
		WithArgs("alice").
		WillReturnRows(userRows(now, now))

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.ID != "u-1" || got.Username != "alice" || got.SubscriptionTier != models.TierFree {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*username,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestUpdatePassword_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+password_hash`).
		WithArgs("u-1", "$2a$new", now).
		WillReturnError(errors.New("db down"))

	err := repo.UpdatePassword(context.Background(), "u-1", "$2a$new", now)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestSetFastPathTier_MissingUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+subscription_tier\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("ghost", models.TierPro).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetFastPathTier(context.Background(), "ghost", models.TierPro)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestClearMFA_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+mfa_secret\s*=\s*NULL,\s*mfa_enabled\s*=\s*FALSE\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ClearMFA(context.Background(), "u-1"); err != nil {
		t.Fatalf("ClearMFA error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
