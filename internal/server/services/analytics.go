package services

import (
	"context"
	"database/sql"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/logging"
	"github.com/genovault/genovault/internal/server/authz"
	"github.com/genovault/genovault/internal/server/models"
	"github.com/genovault/genovault/internal/server/repositories/repomanager"
)

// Summary is the aggregate view served to the analyst tier. It carries counts
// only, never file contents or identities.
type Summary struct {
	FilesByMediaType map[string]int64 `json:"files_by_media_type"`
	GrantsByStatus   map[string]int64 `json:"grants_by_status"`
}

// AnalyticsService serves aggregate statistics to the analyst tier.
type AnalyticsService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAnalyticsService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AnalyticsService {
	return &AnalyticsService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "analytics"),
	}
}

// Summarize returns corpus-wide aggregates. Analyst tier only.
func (s *AnalyticsService) Summarize(ctx context.Context, principalID string) (*Summary, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	fileRepo := s.repomanager.Files(s.db)
	grantRepo := s.repomanager.Grants(s.db)

	profile, err := resolveProfile(ctx, profileRepo, principalID)
	if err != nil {
		return nil, err
	}
	if !authz.CanViewAnalytics(profile) {
		return nil, common.ErrForbidden
	}

	byType, err := fileRepo.CountByMediaType(ctx)
	if err != nil {
		return nil, common.ErrStorageUnavailable
	}
	byStatus, err := grantRepo.CountByStatus(ctx)
	if err != nil {
		return nil, common.ErrStorageUnavailable
	}

	return &Summary{
		FilesByMediaType: byType,
		GrantsByStatus:   byStatus,
	}, nil
}

// AuditTrail returns the caller's own recent audit entries.
func (s *AnalyticsService) AuditTrail(ctx context.Context, principalID string, limit int) ([]*models.AuditEntry, error) {
	profileRepo := s.repomanager.Profiles(s.db)
	auditRepo := s.repomanager.Audit(s.db)

	profile, err := resolveProfile(ctx, profileRepo, principalID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return auditRepo.ListByActor(ctx, profile.ID, limit)
}
