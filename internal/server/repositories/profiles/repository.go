package profiles

import (
	"context"

	"github.com/genovault/genovault/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)
}
