package audit

import (
	"context"

	"github.com/genovault/genovault/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEntry, error)
}
