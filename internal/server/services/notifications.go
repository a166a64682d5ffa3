package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/push"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
)

// Delivery reasons reported when nothing was sent or the gateway refused.
const (
	ReasonUserNotFound = "user not found"
	ReasonNoToken      = "no push token"
	ReasonInvalidToken = "invalid push token"
)

// NotificationService pushes notifications to a user's registered device.
// It never returns errors: every failure ends up in the Delivery and the log.
type NotificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gateway     PushGateway
	log         logging.Logger
}

func NewNotificationService(db *sql.DB, m repomanager.RepositoryManager, gateway PushGateway, log logging.Logger) *NotificationService {
	return &NotificationService{
		db:          db,
		repomanager: m,
		gateway:     gateway,
		log:         log.With("module", "notifications"),
	}
}

// NotifyMatch tells a lost report owner that a sighting resembles their pet.
func (s *NotificationService) NotifyMatch(ctx context.Context, ownerID, matchID string, score float64, petName string) models.Delivery {
	body := fmt.Sprintf("Someone reported seeing %s. Similarity: %d%%", petName, int(math.Round(score*100)))
	return s.deliver(ctx, ownerID, "Possible match found!", body, map[string]any{
		"type":     "new_match",
		"match_id": matchID,
		"score":    strconv.FormatFloat(score, 'f', -1, 64),
		"pet_name": petName,
		"screen":   "Matches",
	})
}

// NotifyMatchConfirmed tells a sighting reporter that the owner recognised
// their pet, including the owner's phone when it is on file.
func (s *NotificationService) NotifyMatchConfirmed(ctx context.Context, reporterID, matchID, petName string, ownerPhone *string) models.Delivery {
	body := fmt.Sprintf("The owner of %s confirmed the match.", petName)
	phone := ""
	if ownerPhone != nil && *ownerPhone != "" {
		phone = *ownerPhone
		body += " Contact: " + phone
	}
	return s.deliver(ctx, reporterID, "The owner confirmed it is their pet!", body, map[string]any{
		"type":        "match_confirmed",
		"match_id":    matchID,
		"pet_name":    petName,
		"owner_phone": phone,
		"screen":      "Matches",
	})
}

// SendTest sends a test notification to userID.
func (s *NotificationService) SendTest(ctx context.Context, userID string) models.Delivery {
	name := "there"
	if u, err := s.repomanager.Users(s.db).GetByID(ctx, userID); err == nil && u.FullName != "" {
		name = u.FullName
	}
	return s.deliver(ctx, userID, "Test notification", fmt.Sprintf("Hello %s! Notifications are working.", name),
		map[string]any{"type": "test"})
}

func (s *NotificationService) deliver(ctx context.Context, userID, title, body string, data map[string]any) models.Delivery {
	log := s.log.With("user_id", userID)
	users := s.repomanager.Users(s.db)

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			log.Warn(ctx, "notification skipped", "reason", ReasonUserNotFound)
			return models.Delivery{Reason: ReasonUserNotFound}
		}
		log.Error(ctx, "user lookup failed", "error", err)
		return models.Delivery{Reason: err.Error()}
	}

	if user.PushToken == nil || *user.PushToken == "" {
		log.Info(ctx, "notification skipped", "reason", ReasonNoToken)
		return models.Delivery{Reason: ReasonNoToken}
	}
	token := *user.PushToken
	if !push.IsExpoPushToken(token) {
		log.Warn(ctx, "notification skipped", "reason", ReasonInvalidToken)
		return models.Delivery{Reason: ReasonInvalidToken}
	}

	res, err := s.gateway.Send(ctx, token, title, body, data)
	if err != nil {
		log.Error(ctx, "push send failed", "error", err)
		return models.Delivery{Reason: err.Error()}
	}

	if res.PermanentFailure {
		cleared, err := users.ClearPushToken(ctx, userID, token)
		switch {
		case err != nil:
			log.Error(ctx, "clearing dead push token failed", "error", err)
		case cleared:
			log.Info(ctx, "dead push token cleared")
		}
	}
	if !res.Delivered {
		log.Warn(ctx, "push rejected", "reason", res.Reason, "permanent", res.PermanentFailure)
		return models.Delivery{Reason: res.Reason}
	}

	log.Info(ctx, "push delivered", "type", data["type"])
	return models.Delivery{Delivered: true}
}
