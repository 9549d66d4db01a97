package grants

import (
	"context"
	"time"

	"github.com/genovault/genovault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, grant *models.Grant) (*models.Grant, error)
	FindActive(ctx context.Context, fileID, granteeID string) (*models.Grant, error)
	Revoke(ctx context.Context, id, revokedBy, reason string, revokedAt time.Time) error
	ListByFile(ctx context.Context, fileID string) ([]*models.Grant, error)
	ListByGrantee(ctx context.Context, granteeID string) ([]*models.Grant, error)
	RevokeAllForFile(ctx context.Context, fileID, revokedBy, reason string, revokedAt time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}
