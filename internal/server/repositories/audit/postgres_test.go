package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

func TestAppend(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+audit_log\b`).
		WithArgs("actor-1", models.AuditActionUpload, "file-1", models.AuditOutcomeSuccess, "uploaded genome.vcf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(context.Background(), &models.AuditEntry{
		ActorID: "actor-1",
		Action:  models.AuditActionUpload,
		FileID:  "file-1",
		Outcome: models.AuditOutcomeSuccess,
		Detail:  "uploaded genome.vcf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListByActor(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "actor_id", "action", "file_id", "outcome", "detail", "created_at"}).
		AddRow("a1", "actor-1", "upload", "f1", "success", "", now).
		AddRow("a2", "actor-1", "download", "f1", "failure", "rate limited", now)

	mock.ExpectQuery(`(?s)^\s*SELECT\b.*FROM\s+audit_log\s+WHERE\s+actor_id\s*=\s*\$1\b`).
		WithArgs("actor-1", 10).
		WillReturnRows(rows)

	got, err := repo.ListByActor(context.Background(), "actor-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
}
