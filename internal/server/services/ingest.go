package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/cryptox"
	"github.com/genovault/genovault/internal/logging"
	"github.com/genovault/genovault/internal/ratelimit"
	"github.com/genovault/genovault/internal/server/authz"
	sc "github.com/genovault/genovault/internal/server/config"
	"github.com/genovault/genovault/internal/server/ledger"
	"github.com/genovault/genovault/internal/server/models"
	"github.com/genovault/genovault/internal/server/repositories/repomanager"
	"github.com/genovault/genovault/internal/server/storage"
)

// IngestService runs the upload pipeline: validate, encrypt, store, record,
// anchor, audit. The metadata insert is the commit point; a blob uploaded
// before a failed insert is deleted again so no orphaned ciphertext remains.
type IngestService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	limiter     ratelimit.Limiter
	blobs       storage.BlobStore
	anchor      ledger.Anchor
}

func NewIngestService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config,
	logger logging.Logger, limiter ratelimit.Limiter, blobs storage.BlobStore, anchor ledger.Anchor) *IngestService {
	return &IngestService{
		db:          db,
		repomanager: m,
		config:      cfg,
		logger:      logger.With("module", "ingest"),
		limiter:     limiter,
		blobs:       blobs,
		anchor:      anchor,
	}
}

// Upload ingests one file for the given principal and returns the stored
// record without key material.
func (s *IngestService) Upload(ctx context.Context, principalID, filename, mediaType string, content []byte) (*models.FileRecord, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)
	auditRepo := s.repomanager.Audit(s.db)

	// Received: resolve the principal.
	profile, err := resolveProfile(ctx, profileRepo, principalID)
	if err != nil {
		return nil, err
	}

	fail := func(detail string, cause error) (*models.FileRecord, error) {
		writeAudit(ctx, auditRepo, s.logger, &models.AuditEntry{
			ActorID: profile.ID,
			Action:  models.AuditActionUpload,
			Outcome: models.AuditOutcomeFailure,
			Detail:  detail,
		})
		return nil, cause
	}

	// Validated.
	if !authz.CanUpload(profile) {
		return fail("tier not permitted to upload", common.ErrForbidden)
	}
	if !s.limiter.TryConsume(profile.ID, ratelimit.OpUpload, s.config.UploadLimitPerHour, time.Hour) {
		return fail(fmt.Sprintf("upload budget exhausted (%d/hour)", s.config.UploadLimitPerHour), common.ErrRateLimited)
	}
	if !mediaTypeAllowed(mediaType) {
		return fail("media type not allowed: "+mediaType, common.ErrUnsupportedType)
	}
	if int64(len(content)) > s.config.MaxUploadBytes {
		return fail(fmt.Sprintf("size %d exceeds cap %d", len(content), s.config.MaxUploadBytes), common.ErrTooLarge)
	}
	if mediaType == mediaTypeVCF && !sniffVCF(content) {
		return fail("declared VCF without format marker", common.ErrMalformedContent)
	}

	// Encrypted.
	env, err := cryptox.Encrypt(content)
	if err != nil {
		s.logger.Error(ctx, "encryption failed", "error", err)
		return fail("encryption failed", common.ErrInternal)
	}

	// Stored. Failure here aborts with no record created.
	storageKey := storage.MakeStorageKey(profile.ID, filename)
	if err := s.blobs.Put(ctx, storageKey, env.Ciphertext); err != nil {
		s.logger.Error(ctx, "blob upload failed", "storage_key", storageKey, "error", err)
		return fail("blob upload failed", mapDependencyErr(err))
	}

	// Anchor the ciphertext digest. Best-effort: an unreachable ledger
	// degrades to a placeholder reference, it never blocks the upload.
	ledgerRef, err := s.anchor.Submit(ctx, env.Digest)
	if err != nil {
		ledgerRef = ledger.PlaceholderRef()
		s.logger.Warn(ctx, "ledger anchoring failed, using placeholder",
			"ledger_ref", ledgerRef, "error", err)
	}

	// Recorded. If the insert fails after the blob landed, delete the blob
	// before returning: no orphaned ciphertext.
	record := &models.FileRecord{
		OwnerID:    profile.ID,
		Filename:   filename,
		MediaType:  mediaType,
		SizeBytes:  int64(len(content)),
		StorageKey: storageKey,
		Key:        env.Key,
		IV:         env.IV,
		Digest:     env.Digest,
		LedgerRef:  ledgerRef,
	}
	record, err = fileRepo.Create(ctx, record)
	if err != nil {
		s.logger.Error(ctx, "metadata insert failed", "storage_key", storageKey, "error", err)
		if delErr := s.blobs.Delete(ctx, storageKey); delErr != nil {
			s.logger.Error(ctx, "compensating blob delete failed",
				"storage_key", storageKey, "error", delErr)
		}
		return fail("metadata insert failed", common.ErrStorageUnavailable)
	}

	// Processed: optional VCF normalization, hashed separately for anchoring.
	// Failure is non-fatal; the upload already succeeded.
	if mediaType == mediaTypeVCF {
		s.processVCF(ctx, record.ID, content)
	}

	// Logged.
	writeAudit(ctx, auditRepo, s.logger, &models.AuditEntry{
		ActorID: profile.ID,
		Action:  models.AuditActionUpload,
		FileID:  record.ID,
		Outcome: models.AuditOutcomeSuccess,
		Detail:  filename,
	})

	s.logger.Info(ctx, "file ingested",
		"file_id", record.ID, "owner_id", profile.ID, "size", record.SizeBytes)

	sanitized := record.Sanitized()
	return &sanitized, nil
}

// Reanchor retries digest anchoring for a file that was stored under a
// placeholder reference while the ledger was unreachable. Owner only. A
// record that already carries a real reference is returned unchanged.
func (s *IngestService) Reanchor(ctx context.Context, principalID, fileID string) (*models.FileRecord, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)

	profile, err := resolveProfile(ctx, profileRepo, principalID)
	if err != nil {
		return nil, err
	}

	record, err := fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.ErrStorageUnavailable
	}
	if record.OwnerID != profile.ID {
		return nil, common.ErrForbidden
	}

	if !ledger.IsPlaceholder(record.LedgerRef) {
		sanitized := record.Sanitized()
		return &sanitized, nil
	}

	ref, err := s.anchor.Submit(ctx, record.Digest)
	if err != nil {
		s.logger.Warn(ctx, "re-anchoring failed, placeholder kept",
			"file_id", record.ID, "error", err)
		return nil, mapDependencyErr(err)
	}
	if err := fileRepo.UpdateLedgerRef(ctx, record.ID, ref); err != nil {
		return nil, common.ErrStorageUnavailable
	}
	record.LedgerRef = ref

	s.logger.Info(ctx, "digest re-anchored", "file_id", record.ID, "ledger_ref", ref)

	sanitized := record.Sanitized()
	return &sanitized, nil
}

func (s *IngestService) processVCF(ctx context.Context, fileID string, content []byte) {
	normalized, err := normalizeVCF(content)
	if err != nil {
		s.logger.Warn(ctx, "VCF normalization failed", "file_id", fileID, "error", err)
		return
	}
	digest := cryptox.DigestHex([]byte(normalized))
	if _, err := s.anchor.Submit(ctx, digest); err != nil {
		s.logger.Warn(ctx, "normalized digest anchoring failed", "file_id", fileID, "error", err)
	}
}
