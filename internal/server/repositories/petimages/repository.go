package petimages

import (
	"context"

	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, img *models.PetImage) (*models.PetImage, error)
	GetByVectorID(ctx context.Context, vectorID string) (*models.PetImage, error)
	ListByReport(ctx context.Context, reportID string) ([]*models.PetImage, error)
	ListBySighting(ctx context.Context, sightingID string) ([]*models.PetImage, error)
}
