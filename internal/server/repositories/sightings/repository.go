package sightings

import (
	"context"

	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Sighting) (*models.Sighting, error)
	GetByID(ctx context.Context, id string) (*models.Sighting, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Sighting, int, error)
	UpdateStatus(ctx context.Context, id string, status models.SightingStatus) error
	Update(ctx context.Context, id string, upd models.SightingUpdate) error
	Delete(ctx context.Context, id string) error
}
