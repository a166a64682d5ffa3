package users

import (
	"context"

	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

type Repository interface {
	Ensure(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	SetPushToken(ctx context.Context, id string, token *string) error
	ClearPushToken(ctx context.Context, id string, token string) (bool, error)
}
