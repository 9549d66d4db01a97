package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/logging"
	"github.com/genovault/genovault/internal/ratelimit"
	"github.com/genovault/genovault/internal/server/authz"
	sc "github.com/genovault/genovault/internal/server/config"
	"github.com/genovault/genovault/internal/server/models"
	"github.com/genovault/genovault/internal/server/notify"
	"github.com/genovault/genovault/internal/server/repositories/repomanager"
)

// Grant expiry bounds: a grant defaults to 30 days and may never exceed a
// 365-day horizon.
const (
	DefaultGrantTTL   = 30 * 24 * time.Hour
	MaxGrantHorizon   = 365 * 24 * time.Hour
	grantBudgetWindow = 24 * time.Hour
)

// GrantService manages the access-grant lifecycle: create, revoke, and the
// authorization predicate used by retrieval.
type GrantService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	limiter     ratelimit.Limiter
	notifier    notify.Notifier

	now func() time.Time
}

func NewGrantService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config,
	logger logging.Logger, limiter ratelimit.Limiter, notifier notify.Notifier) *GrantService {
	return &GrantService{
		db:          db,
		repomanager: m,
		config:      cfg,
		logger:      logger.With("module", "grants"),
		limiter:     limiter,
		notifier:    notifier,
		now:         time.Now,
	}
}

// Grant shares fileID with granteeID. Preconditions are checked in a fixed
// order and the first failure wins: ownership, grantee eligibility, grant
// budget, duplicate active grant, expiry bounds. On success the grant is
// persisted active, audited, and the grantee is notified off the critical
// path.
func (s *GrantService) Grant(ctx context.Context, fileID, grantorID, granteeID, accessLevel string, expiresAt *time.Time) (*models.Grant, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)
	grantRepo := s.repomanager.Grants(s.db)
	auditRepo := s.repomanager.Audit(s.db)

	grantor, err := resolveProfile(ctx, profileRepo, grantorID)
	if err != nil {
		return nil, err
	}

	// (a) Grantor must own the file. Absent file and foreign file look the
	// same to the caller.
	record, err := fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.ErrStorageUnavailable
	}
	if record.OwnerID != grantor.ID {
		return nil, common.ErrForbidden
	}

	// (b) Grantee must exist and hold the researcher tier; the grantor must
	// hold the owner tier. Sharing is cross-tier only.
	grantee, err := profileRepo.GetByID(ctx, granteeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrIneligibleGrantee
		}
		return nil, common.ErrStorageUnavailable
	}
	if !authz.EligibleGrantee(grantee) || !authz.CanGrant(grantor, grantee) {
		return nil, common.ErrIneligibleGrantee
	}

	// (c) Daily grant budget.
	if !s.limiter.TryConsume(grantor.ID, ratelimit.OpGrant, s.config.GrantLimitPerDay, grantBudgetWindow) {
		return nil, common.ErrRateLimited
	}

	// (d) At most one active grant per (file, grantee).
	if _, err := grantRepo.FindActive(ctx, fileID, granteeID); err == nil {
		return nil, common.ErrAlreadyGranted
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrStorageUnavailable
	}

	// (e) Expiry must lie in the future, within the horizon.
	now := s.now()
	expiry := now.Add(DefaultGrantTTL)
	if expiresAt != nil {
		if !expiresAt.After(now) {
			return nil, fmt.Errorf("%w: expiry is not in the future", common.ErrInvalidExpiry)
		}
		if expiresAt.Sub(now) > MaxGrantHorizon {
			return nil, fmt.Errorf("%w: expiry exceeds %s horizon", common.ErrInvalidExpiry, MaxGrantHorizon)
		}
		expiry = *expiresAt
	}

	if accessLevel == "" {
		accessLevel = models.AccessLevelRead
	}
	if accessLevel != models.AccessLevelRead && accessLevel != models.AccessLevelReadWrite {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidAccess, accessLevel)
	}

	grant := &models.Grant{
		FileID:      fileID,
		GrantorID:   grantor.ID,
		GranteeID:   grantee.ID,
		AccessLevel: accessLevel,
		Status:      models.GrantStatusActive,
		ExpiresAt:   expiry,
	}
	grant, err = grantRepo.Create(ctx, grant)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyGranted) {
			return nil, common.ErrAlreadyGranted
		}
		return nil, common.ErrStorageUnavailable
	}

	writeAudit(ctx, auditRepo, s.logger, &models.AuditEntry{
		ActorID: grantor.ID,
		Action:  models.AuditActionGrant,
		FileID:  fileID,
		Outcome: models.AuditOutcomeSuccess,
		Detail:  fmt.Sprintf("granted %s to %s until %s", accessLevel, grantee.ID, expiry.Format(time.RFC3339)),
	})

	// Fire-and-forget: a failed notification never fails the grant.
	notifyAsync(s.logger, func(ctx context.Context) error {
		return s.notifier.Notify(ctx, granteeID, notify.EventAccessGranted, fileID)
	})

	s.logger.Info(ctx, "access granted",
		"file_id", fileID, "grantor_id", grantor.ID, "grantee_id", grantee.ID)

	return grant, nil
}

// Revoke withdraws an active grant. Only the file owner may revoke, and a
// revocation with no matching active grant is an error.
func (s *GrantService) Revoke(ctx context.Context, fileID, grantorID, granteeID, reason string) error {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)
	grantRepo := s.repomanager.Grants(s.db)
	auditRepo := s.repomanager.Audit(s.db)

	grantor, err := resolveProfile(ctx, profileRepo, grantorID)
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
	if record.OwnerID != grantor.ID {
		return common.ErrForbidden
	}

	grant, err := grantRepo.FindActive(ctx, fileID, granteeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNoActiveGrant
		}
		return common.ErrStorageUnavailable
	}

	if err := grantRepo.Revoke(ctx, grant.ID, grantor.ID, reason, s.now()); err != nil {
		if errors.Is(err, common.ErrNoActiveGrant) {
			return common.ErrNoActiveGrant
		}
		return common.ErrStorageUnavailable
	}

	writeAudit(ctx, auditRepo, s.logger, &models.AuditEntry{
		ActorID: grantor.ID,
		Action:  models.AuditActionRevoke,
		FileID:  fileID,
		Outcome: models.AuditOutcomeSuccess,
		Detail:  fmt.Sprintf("revoked access of %s: %s", granteeID, reason),
	})

	notifyAsync(s.logger, func(ctx context.Context) error {
		return s.notifier.Notify(ctx, granteeID, notify.EventAccessRevoked, fileID)
	})

	s.logger.Info(ctx, "access revoked",
		"file_id", fileID, "grantor_id", grantor.ID, "grantee_id", granteeID)

	return nil
}

// IsAuthorized reports whether granteeID may read fileID: true for the owner
// and for holders of an active, non-expired grant. Expiry is derived at read
// time; a stale "active" row past its expiry does not authorize.
func (s *GrantService) IsAuthorized(ctx context.Context, fileID, granteeID string) (bool, error) {
	fileRepo := s.repomanager.Files(s.db)
	grantRepo := s.repomanager.Grants(s.db)

	record, err := fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if record.OwnerID == granteeID {
		return true, nil
	}

	grant, err := grantRepo.FindActive(ctx, fileID, granteeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !grant.Expired(s.now()), nil
}

// ListForFile returns all grants on a file. Owner only.
func (s *GrantService) ListForFile(ctx context.Context, principalID, fileID string) ([]*models.Grant, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)
	grantRepo := s.repomanager.Grants(s.db)

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

	return grantRepo.ListByFile(ctx, fileID)
}

// ListForGrantee returns the grants held by the calling principal.
func (s *GrantService) ListForGrantee(ctx context.Context, principalID string) ([]*models.Grant, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	grantRepo := s.repomanager.Grants(s.db)

	profile, err := resolveProfile(ctx, profileRepo, principalID)
	if err != nil {
		return nil, err
	}

	return grantRepo.ListByGrantee(ctx, profile.ID)
}
