// Package services contains server-side business logic: the sighting
// matching pipeline, report and match management, user profiles and push
// notifications.
package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/push"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
)

// Identity is what a verified bearer token says about the caller.
type Identity struct {
	UserID   string
	Email    string
	FullName string
}

// UserService manages accounts. Users are created on first authenticated
// contact and never deleted.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *UserService {
	return &UserService{db: db, repomanager: m, log: log.With("module", "users")}
}

// Ensure returns the user for id, creating it from the token claims when it
// does not exist yet.
func (s *UserService) Ensure(ctx context.Context, id Identity) (*models.User, error) {
	if id.UserID == "" {
		return nil, common.ErrorUnauthorized
	}
	return s.repomanager.Users(s.db).Ensure(ctx, &models.User{
		ID:       id.UserID,
		Email:    id.Email,
		FullName: id.FullName,
	})
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// UpdateProfile changes name and phone. An empty phone removes it; a phone
// used by another account yields ErrorConflict.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if name == "" {
			return nil, common.Validationf("full_name must not be empty")
		}
		upd.FullName = &name
	}
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		upd.Phone = &phone
	}
	u, err := s.repomanager.Users(s.db).UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "profile updated", "user_id", userID)
	return u, nil
}

// SetPushToken stores the caller's device token. Only Expo tokens are
// accepted.
func (s *UserService) SetPushToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if !push.IsExpoPushToken(token) {
		return common.Validationf("invalid push token")
	}
	if err := s.repomanager.Users(s.db).SetPushToken(ctx, userID, &token); err != nil {
		return err
	}
	s.log.Info(ctx, "push token registered", "user_id", userID)
	return nil
}

// ClearPushToken removes the caller's device token.
func (s *UserService) ClearPushToken(ctx context.Context, userID string) error {
	return s.repomanager.Users(s.db).SetPushToken(ctx, userID, nil)
}
