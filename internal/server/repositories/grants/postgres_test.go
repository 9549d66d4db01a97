package grants

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

type fakePgErr struct{ code string }

func (e *fakePgErr) Error() string    { return "unique violation" }
func (e *fakePgErr) SQLState() string { return e.code }

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	expires := now.Add(30 * 24 * time.Hour)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+grants\b.*RETURNING\s+id,\s*created_at\s*$`).
		WithArgs("file-1", "owner-1", "grantee-1", "read", "active", expires).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("grant-1", now))

	g, err := repo.Create(context.Background(), &models.Grant{
		FileID:      "file-1",
		GrantorID:   "owner-1",
		GranteeID:   "grantee-1",
		AccessLevel: models.AccessLevelRead,
		Status:      models.GrantStatusActive,
		ExpiresAt:   expires,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ID != "grant-1" {
		t.Fatalf("expected generated id, got %q", g.ID)
	}
}

func TestCreate_DuplicateActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+grants\b`).
		WillReturnError(&fakePgErr{code: "23505"})

	_, err := repo.Create(context.Background(), &models.Grant{
		FileID:    "file-1",
		GranteeID: "grantee-1",
		Status:    models.GrantStatusActive,
	})
	if !errors.Is(err, common.ErrAlreadyGranted) {
		t.Fatalf("expected ErrAlreadyGranted, got %v", err)
	}
}

func TestFindActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^\s*SELECT\b.*FROM\s+grants\s+WHERE\s+file_id\s*=\s*\$1\s+AND\s+grantee_id\s*=\s*\$2\s+AND\s+status\s*=\s*'active'\s*$`

	rows := sqlmock.NewRows([]string{"id", "file_id", "grantor_id", "grantee_id", "access_level", "status", "expires_at", "created_at"}).
		AddRow("grant-1", "file-1", "owner-1", "grantee-1", "read", "active", now.Add(time.Hour), now)

	mock.ExpectQuery(q).WithArgs("file-1", "grantee-1").WillReturnRows(rows)

	g, err := repo.FindActive(context.Background(), "file-1", "grantee-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Status != models.GrantStatusActive {
		t.Fatalf("unexpected grant: %+v", g)
	}

	mock.ExpectQuery(q).WithArgs("file-1", "nobody").WillReturnError(sql.ErrNoRows)
	_, err = repo.FindActive(context.Background(), "file-1", "nobody")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^\s*UPDATE\s+grants\s+SET\s+status\s*=\s*'revoked'.*WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*'active'\s*$`

	mock.ExpectExec(q).
		WithArgs("grant-1", now, "owner-1", "rotated collaborators").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Revoke(context.Background(), "grant-1", "owner-1", "rotated collaborators", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(q).
		WithArgs("grant-1", now, "owner-1", "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Revoke(context.Background(), "grant-1", "owner-1", "", now)
	if !errors.Is(err, common.ErrNoActiveGrant) {
		t.Fatalf("expected ErrNoActiveGrant, got %v", err)
	}
}

func TestRevokeAllForFile(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)^\s*UPDATE\s+grants\s+SET\s+status\s*=\s*'revoked'.*WHERE\s+file_id\s*=\s*\$1\s+AND\s+status\s*=\s*'active'\s*$`).
		WithArgs("file-1", now, "owner-1", "file deleted").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForFile(context.Background(), "file-1", "owner-1", "file deleted", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revocations, got %d", n)
	}
}

func TestListByGrantee(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "file_id", "grantor_id", "grantee_id", "access_level", "status", "expires_at", "created_at"}).
		AddRow("g1", "f1", "o1", "grantee-1", "read", "active", now.Add(time.Hour), now).
		AddRow("g2", "f2", "o2", "grantee-1", "read", "revoked", now.Add(time.Hour), now)

	mock.ExpectQuery(`(?s)^\s*SELECT\b.*FROM\s+grants\s+WHERE\s+grantee_id\s*=\s*\$1\b`).
		WithArgs("grantee-1").
		WillReturnRows(rows)

	got, err := repo.ListByGrantee(context.Background(), "grantee-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(got))
	}
}
