package lockouts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/psharma/securenotes/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+identity_key,.*FROM\s+lockout_states`).
		WithArgs("alice", "10.0.0.1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "alice", "10.0.0.1")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGet_Locked(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	until := now.Add(30 * time.Minute)
	rows := sqlmock.NewRows([]string{"identity_key", "origin", "failure_count", "window_start", "locked_until"}).
		AddRow("alice", "10.0.0.1", 5, now, until)
	mock.ExpectQuery(`(?s)SELECT\s+identity_key,.*FROM\s+lockout_states`).
		WithArgs("alice", "10.0.0.1").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "alice", "10.0.0.1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.FailureCount != 5 || got.LockedUntil == nil || !got.LockedUntil.Equal(until) {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestRecordFailure_ReturnsCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	cutoff := now.Add(-30 * time.Minute)
	q := `(?s)INSERT\s+INTO\s+lockout_states.*ON\s+CONFLICT\s*\(identity_key,\s*origin\)\s+DO\s+UPDATE.*RETURNING\s+failure_count`

	mock.ExpectQuery(q).
		WithArgs("alice", "10.0.0.1", now, cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"failure_count"}).AddRow(3))

	count, err := repo.RecordFailure(context.Background(), "alice", "10.0.0.1", now, cutoff)
	if err != nil {
		t.Fatalf("RecordFailure error: %v", err)
	}
	if count != 3 {
		t.Fatalf("unexpected count: %d", count)
	}
}

func TestLockAndClear(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	until := time.Now().Add(time.Hour)
	mock.ExpectExec(`UPDATE\s+lockout_states\s+SET\s+locked_until`).
		WithArgs("alice", "10.0.0.1", until).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+lockout_states`).
		WithArgs("alice", "10.0.0.1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Lock(context.Background(), "alice", "10.0.0.1", until); err != nil {
		t.Fatalf("Lock error: %v", err)
	}
	if err := repo.Clear(context.Background(), "alice", "10.0.0.1"); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
