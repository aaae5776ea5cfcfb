package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

func TestGetForUpdate_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"user_id", "tier", "status", "billing_cycle_start", "billing_cycle_end", "updated_at"}).
		AddRow("u-1", "PRO", "ACTIVE", nil, nil, now)

	mock.ExpectQuery(`(?s)SELECT\s+user_id,.*FROM\s+subscriptions\s+WHERE\s+user_id\s*=\s*\$1\s+FOR\s+UPDATE`).
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.GetForUpdate(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetForUpdate error: %v", err)
	}
	if got.Tier != models.TierPro || got.Status != models.StatusActive {
		t.Fatalf("unexpected subscription: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+user_id,.*FROM\s+subscriptions`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestInsertTransaction_FirstTime(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)INSERT\s+INTO\s+subscription_transactions.*ON\s+CONFLICT\s*\(transaction_ref\)\s+DO\s+NOTHING`

	mock.ExpectExec(q).
		WithArgs("txn-1", "u-1", models.TierPro, int64(999), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertTransaction(context.Background(), &models.SubscriptionTransaction{
		Ref: "txn-1", UserID: "u-1", Tier: models.TierPro, AmountCents: 999, ProcessedAt: now,
	})
	if err != nil {
		t.Fatalf("InsertTransaction error: %v", err)
	}
	if !inserted {
		t.Fatal("want inserted=true on first insert")
	}
}

func TestInsertTransaction_Replay(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`INSERT\s+INTO\s+subscription_transactions`).
		WithArgs("txn-1", "u-1", models.TierPro, int64(999), now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertTransaction(context.Background(), &models.SubscriptionTransaction{
		Ref: "txn-1", UserID: "u-1", Tier: models.TierPro, AmountCents: 999, ProcessedAt: now,
	})
	if err != nil {
		t.Fatalf("InsertTransaction error: %v", err)
	}
	if inserted {
		t.Fatal("want inserted=false on replay")
	}
}

func TestUpdate_MissingRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)UPDATE\s+subscriptions\s+SET\s+tier`).
		WithArgs("ghost", models.TierPro, models.StatusActive, nil, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Subscription{
		UserID: "ghost", Tier: models.TierPro, Status: models.StatusActive, UpdatedAt: now,
	})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}
