package lostreports

import (
	"context"

	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, report *models.LostReport) (*models.LostReport, error)
	GetByID(ctx context.Context, id string) (*models.LostReport, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.LostReport, int, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error
}
