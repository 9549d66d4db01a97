package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/dbx"
	"github.com/genovault/genovault/internal/server/models"
)

// PostgresRepository implements grant storage over a dbx.DBTX. The partial
// unique index on (file_id, grantee_id) WHERE status='active' backs the
// at-most-one-active-grant invariant at the schema level; Create translates
// that violation to common.ErrAlreadyGranted.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, grant *models.Grant) (*models.Grant, error) {
	query := `
		INSERT INTO grants (file_id, grantor_id, grantee_id, access_level, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		grant.FileID, grant.GrantorID, grant.GranteeID, grant.AccessLevel, grant.Status, grant.ExpiresAt,
	).Scan(&grant.ID, &grant.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrAlreadyGranted
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return grant, nil
}

// FindActive returns the active grant for (fileID, granteeID), if any.
// Expiry is not evaluated here; it is a read-time decision for the caller.
func (r *PostgresRepository) FindActive(ctx context.Context, fileID, granteeID string) (*models.Grant, error) {
	query := `
		SELECT id, file_id, grantor_id, grantee_id, access_level, status, expires_at, created_at
		FROM grants
		WHERE file_id = $1 AND grantee_id = $2 AND status = 'active'
	`
	g := &models.Grant{}
	err := r.db.QueryRowContext(ctx, query, fileID, granteeID).Scan(
		&g.ID, &g.FileID, &g.GrantorID, &g.GranteeID, &g.AccessLevel, &g.Status, &g.ExpiresAt, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

// Revoke marks a single active grant revoked with the revoker's identity,
// timestamp, and reason. Exactly one row must be affected.
func (r *PostgresRepository) Revoke(ctx context.Context, id, revokedBy, reason string, revokedAt time.Time) error {
	query := `
		UPDATE grants
		SET status = 'revoked', revoked_at = $2, revoked_by = $3, revoked_reason = $4
		WHERE id = $1 AND status = 'active'
	`
	result, err := r.db.ExecContext(ctx, query, id, revokedAt, revokedBy, reason)
	if err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNoActiveGrant
	}
	return nil
}

func (r *PostgresRepository) ListByFile(ctx context.Context, fileID string) ([]*models.Grant, error) {
	query := `
		SELECT id, file_id, grantor_id, grantee_id, access_level, status, expires_at, created_at
		FROM grants
		WHERE file_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, fileID)
}

func (r *PostgresRepository) ListByGrantee(ctx context.Context, granteeID string) ([]*models.Grant, error) {
	query := `
		SELECT id, file_id, grantor_id, grantee_id, access_level, status, expires_at, created_at
		FROM grants
		WHERE grantee_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, granteeID)
}

// RevokeAllForFile revokes every active grant on a file. Used by the delete
// cascade. Returns the number of grants revoked.
func (r *PostgresRepository) RevokeAllForFile(ctx context.Context, fileID, revokedBy, reason string, revokedAt time.Time) (int64, error) {
	query := `
		UPDATE grants
		SET status = 'revoked', revoked_at = $2, revoked_by = $3, revoked_reason = $4
		WHERE file_id = $1 AND status = 'active'
	`
	result, err := r.db.ExecContext(ctx, query, fileID, revokedAt, revokedBy, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke grants: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra, nil
}

// CountByStatus returns aggregate grant counts per status.
func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	query := `SELECT status, COUNT(*) FROM grants GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count grants: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		result[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]*models.Grant, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to select grants: %w", err)
	}
	defer rows.Close()

	var result []*models.Grant
	for rows.Next() {
		var g models.Grant
		if err := rows.Scan(&g.ID, &g.FileID, &g.GrantorID, &g.GranteeID,
			&g.AccessLevel, &g.Status, &g.ExpiresAt, &g.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isUniqueViolation matches Postgres unique-constraint errors (SQLSTATE 23505)
// without depending on the concrete driver error type.
func isUniqueViolation(err error) bool {
	var code interface{ SQLState() string }
	if errors.As(err, &code) {
		return code.SQLState() == "23505"
	}
	return false
}
