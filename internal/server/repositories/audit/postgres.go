package audit

import (
	"context"
	"fmt"

	"github.com/genovault/genovault/internal/dbx"
	"github.com/genovault/genovault/internal/server/models"
)

// PostgresRepository implements the append-only audit log. Rows are never
// updated or deleted by the application.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (actor_id, action, file_id, outcome, detail)
		VALUES (NULLIF($1, '')::uuid, $2, NULLIF($3, '')::uuid, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ActorID, entry.Action, entry.FileID, entry.Outcome, entry.Detail)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, COALESCE(actor_id::text, ''), action, COALESCE(file_id::text, ''), outcome, detail, created_at
		FROM audit_log
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select audit entries: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.FileID, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
