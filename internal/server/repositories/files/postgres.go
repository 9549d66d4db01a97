package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/dbx"
	"github.com/genovault/genovault/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a file record and returns it with the generated id and
// creation timestamp filled in. Key material is stored in the row; see the
// models.FileRecord doc for the security tradeoff.
func (r *PostgresRepository) Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error) {
	query := `
		INSERT INTO files (owner_id, filename, media_type, size_bytes, storage_key, enc_key, enc_iv, digest, ledger_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.OwnerID, file.Filename, file.MediaType, file.SizeBytes,
		file.StorageKey, file.Key, file.IV, file.Digest, file.LedgerRef,
	).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByID returns the full record including key material. Callers returning
// records beyond the service boundary must use Sanitized().
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	query := `
		SELECT id, owner_id, filename, media_type, size_bytes, storage_key, enc_key, enc_iv, digest, ledger_ref, created_at
		FROM files
		WHERE id = $1
	`
	f := &models.FileRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.OwnerID, &f.Filename, &f.MediaType, &f.SizeBytes,
		&f.StorageKey, &f.Key, &f.IV, &f.Digest, &f.LedgerRef, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// ListByOwner returns all records owned by ownerID, newest first, without
// key material.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.FileRecord, error) {
	query := `
		SELECT id, owner_id, filename, media_type, size_bytes, storage_key, digest, ledger_ref, created_at
		FROM files
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		var f models.FileRecord
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Filename, &f.MediaType, &f.SizeBytes,
			&f.StorageKey, &f.Digest, &f.LedgerRef, &f.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateLedgerRef sets the tamper-evidence reference for a record. The only
// mutable column besides deletion. Exactly one row must be affected.
func (r *PostgresRepository) UpdateLedgerRef(ctx context.Context, id, ledgerRef string) error {
	query := `UPDATE files SET ledger_ref = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, ledgerRef)
	if err != nil {
		return fmt.Errorf("failed to update ledger ref: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

// Delete removes a file record. Grants cascade at the schema level.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM files WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

// CountByMediaType returns aggregate counts per declared media type.
func (r *PostgresRepository) CountByMediaType(ctx context.Context) (map[string]int64, error) {
	query := `SELECT media_type, COUNT(*) FROM files GROUP BY media_type`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var mt string
		var n int64
		if err := rows.Scan(&mt, &n); err != nil {
			return nil, err
		}
		result[mt] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
