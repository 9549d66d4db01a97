package files

import (
	"context"

	"github.com/genovault/genovault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error)
	GetByID(ctx context.Context, id string) (*models.FileRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.FileRecord, error)
	UpdateLedgerRef(ctx context.Context, id, ledgerRef string) error
	Delete(ctx context.Context, id string) error
	CountByMediaType(ctx context.Context) (map[string]int64, error)
}
