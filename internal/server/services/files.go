package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/dbx"
	"github.com/genovault/genovault/internal/logging"
	"github.com/genovault/genovault/internal/server/models"
	"github.com/genovault/genovault/internal/server/repositories/repomanager"
	"github.com/genovault/genovault/internal/server/storage"
)

// FileService covers file management outside the ingest and retrieve
// pipelines: listing and deletion.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	blobs       storage.BlobStore

	now func() time.Time
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager,
	logger logging.Logger, blobs storage.BlobStore) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "files"),
		blobs:       blobs,
		now:         time.Now,
	}
}

// List returns the caller's own file records, without key material.
func (s *FileService) List(ctx context.Context, principalID string) ([]*models.FileRecord, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)

	profile, err := resolveProfile(ctx, profileRepo, principalID)
	if err != nil {
		return nil, err
	}
	return fileRepo.ListByOwner(ctx, profile.ID)
}

// Get returns a single record owned by the caller, without key material.
func (s *FileService) Get(ctx context.Context, principalID, fileID string) (*models.FileRecord, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)

	profile, err := resolveProfile(ctx, profileRepo, principalID)
	if err != nil {
		return nil, err
	}

	record, err := fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != profile.ID {
		return nil, common.ErrForbidden
	}

	sanitized := record.Sanitized()
	return &sanitized, nil
}

// Delete removes a file the caller owns: the blob, every outstanding grant,
// and the metadata record. Any owner may delete their own files regardless of
// tier. The blob delete is best-effort; the record delete is the commit point
// and cascades over the grants.
func (s *FileService) Delete(ctx context.Context, principalID, fileID string) error {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)
	auditRepo := s.repomanager.Audit(s.db)

	profile, err := resolveProfile(ctx, profileRepo, principalID)
	if err != nil {
		return err
	}

	record, err := fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.ErrStorageUnavailable
	}
	if record.OwnerID != profile.ID {
		return common.ErrForbidden
	}

	// An unreachable blob store leaves orphaned ciphertext, never a dangling
	// record pointing at it.
	if err := s.blobs.Delete(ctx, record.StorageKey); err != nil {
		s.logger.Warn(ctx, "blob delete failed, ciphertext orphaned",
			"storage_key", record.StorageKey, "error", err)
	}

	// Grants must not outlive the record they authorize: revoke and delete
	// commit together or not at all.
	var revoked int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Grants(tx).RevokeAllForFile(ctx, fileID, profile.ID, "file deleted", s.now())
		if err != nil {
			return err
		}
		revoked = n
		return s.repomanager.Files(tx).Delete(ctx, fileID)
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		s.logger.Error(ctx, "file delete failed", "file_id", fileID, "error", err)
		return common.ErrStorageUnavailable
	}

	writeAudit(ctx, auditRepo, s.logger, &models.AuditEntry{
		ActorID: profile.ID,
		Action:  models.AuditActionDelete,
		FileID:  fileID,
		Outcome: models.AuditOutcomeSuccess,
		Detail:  fmt.Sprintf("%s, %d grants revoked", record.Filename, revoked),
	})

	s.logger.Info(ctx, "file deleted",
		"file_id", fileID, "owner_id", profile.ID, "grants_revoked", revoked)

	return nil
}
