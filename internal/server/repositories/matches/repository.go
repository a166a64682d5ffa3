package matches

import (
	"context"

	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, reportID, sightingID string, score float64) (*models.Match, error)
	GetByID(ctx context.Context, id string) (*models.Match, error)
	GetDetails(ctx context.Context, id string) (*models.MatchDetails, error)
	GetDetailsForUpdate(ctx context.Context, id string) (*models.MatchDetails, error)
	Update(ctx context.Context, id string, upd models.MatchUpdate) (*models.Match, error)
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string, status string, limit, offset int) ([]*models.MatchDetails, int, error)
}
