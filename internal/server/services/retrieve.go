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
	sc "github.com/genovault/genovault/internal/server/config"
	"github.com/genovault/genovault/internal/server/ledger"
	"github.com/genovault/genovault/internal/server/models"
	"github.com/genovault/genovault/internal/server/repositories/repomanager"
	"github.com/genovault/genovault/internal/server/storage"
)

// DownloadResult carries decrypted file bytes plus the response metadata the
// transport needs. Responses built from it must be marked non-cacheable.
type DownloadResult struct {
	Data      []byte
	Filename  string
	MediaType string
}

// RetrieveService runs the download pipeline: authorize, fetch, verify,
// decrypt, audit.
type RetrieveService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	limiter     ratelimit.Limiter
	blobs       storage.BlobStore
	anchor      ledger.Anchor

	now func() time.Time
}

func NewRetrieveService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config,
	logger logging.Logger, limiter ratelimit.Limiter, blobs storage.BlobStore, anchor ledger.Anchor) *RetrieveService {
	return &RetrieveService{
		db:          db,
		repomanager: m,
		config:      cfg,
		logger:      logger.With("module", "retrieve"),
		limiter:     limiter,
		blobs:       blobs,
		anchor:      anchor,
		now:         time.Now,
	}
}

// Download returns the decrypted contents of a file for the given principal.
// Owners always pass authorization; everyone else needs an active,
// non-expired grant.
func (s *RetrieveService) Download(ctx context.Context, principalID, fileID string) (*DownloadResult, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)
	grantRepo := s.repomanager.Grants(s.db)
	auditRepo := s.repomanager.Audit(s.db)

	profile, err := resolveProfile(ctx, profileRepo, principalID)
	if err != nil {
		return nil, err
	}

	fail := func(detail string, cause error) (*DownloadResult, error) {
		writeAudit(ctx, auditRepo, s.logger, &models.AuditEntry{
			ActorID: profile.ID,
			Action:  models.AuditActionDownload,
			FileID:  fileID,
			Outcome: models.AuditOutcomeFailure,
			Detail:  detail,
		})
		return nil, cause
	}

	if !s.limiter.TryConsume(profile.ID, ratelimit.OpDownload, s.config.DownloadLimitPerHour, time.Hour) {
		return fail(fmt.Sprintf("download budget exhausted (%d/hour)", s.config.DownloadLimitPerHour), common.ErrRateLimited)
	}

	record, err := fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fail("file not found", common.ErrNotFound)
		}
		return fail("metadata fetch failed", common.ErrStorageUnavailable)
	}

	isOwner := record.OwnerID == profile.ID
	if !isOwner {
		grant, err := grantRepo.FindActive(ctx, fileID, profile.ID)
		if err != nil || grant.Expired(s.now()) {
			return fail("no active grant", common.ErrForbidden)
		}
	}

	ciphertext, err := s.blobs.Get(ctx, record.StorageKey)
	if err != nil {
		s.logger.Error(ctx, "blob fetch failed", "storage_key", record.StorageKey, "error", err)
		return fail("blob fetch failed", mapDependencyErr(err))
	}

	// Defensive re-check against a blob grown beyond the cap.
	if int64(len(ciphertext)) > s.config.MaxUploadBytes {
		return fail("stored ciphertext exceeds size cap", common.ErrTooLarge)
	}

	// Non-owner reads verify the ciphertext against the independently
	// anchored digest before trusting it. Owners skip this: they are the
	// origin of trust for their own data.
	if !isOwner {
		if err := s.verifyIntegrity(ctx, record, ciphertext); err != nil {
			return fail("integrity verification failed", err)
		}
	}

	plaintext, err := cryptox.Decrypt(ciphertext, record.Key, record.IV)
	// The fetched key material is needed exactly once per read; zero the
	// copies as soon as decryption is done.
	common.WipeByteArray(record.Key)
	common.WipeByteArray(record.IV)
	if err != nil {
		// The crypto error detail stays in the log, not the response.
		s.logger.Error(ctx, "decryption failed", "file_id", record.ID, "error", err)
		return fail("Decryption failed", common.ErrDecryptionFailed)
	}

	writeAudit(ctx, auditRepo, s.logger, &models.AuditEntry{
		ActorID: profile.ID,
		Action:  models.AuditActionDownload,
		FileID:  record.ID,
		Outcome: models.AuditOutcomeSuccess,
		Detail:  record.Filename,
	})

	return &DownloadResult{
		Data:      plaintext,
		Filename:  record.Filename,
		MediaType: record.MediaType,
	}, nil
}

// verifyIntegrity checks the ciphertext against the record digest and the
// ledger-anchored copy of it. A placeholder reference means the digest was
// never anchored; the check is unverifiable and passes with a warning.
func (s *RetrieveService) verifyIntegrity(ctx context.Context, record *models.FileRecord, ciphertext []byte) error {
	if !cryptox.VerifyDigest(ciphertext, record.Digest) {
		s.logger.Error(ctx, "ciphertext does not match recorded digest", "file_id", record.ID)
		return common.ErrIntegrityViolation
	}

	if ledger.IsPlaceholder(record.LedgerRef) {
		s.logger.Warn(ctx, "integrity unverifiable: digest was never anchored",
			"file_id", record.ID, "ledger_ref", record.LedgerRef)
		return nil
	}

	anchored, err := s.anchor.Fetch(ctx, record.LedgerRef)
	if err != nil {
		s.logger.Error(ctx, "anchored digest fetch failed",
			"file_id", record.ID, "ledger_ref", record.LedgerRef, "error", err)
		return mapDependencyErr(err)
	}
	if anchored != record.Digest {
		s.logger.Error(ctx, "recorded digest does not match anchored digest",
			"file_id", record.ID, "ledger_ref", record.LedgerRef)
		return common.ErrIntegrityViolation
	}
	return nil
}
