package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/push"
	"github.com/dmitrijs2005/petmatch/internal/server/similarity"
)

// ObjectStore is satisfied by *storage.S3Store.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, key, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

// SimilarityIndex is satisfied by *similarity.Client.
type SimilarityIndex interface {
	Register(ctx context.Context, subjectID string, eventDate time.Time, image []byte) (*similarity.Registration, error)
	Search(ctx context.Context, image []byte, q similarity.Query) ([]similarity.Candidate, error)
	Delete(ctx context.Context, vectorID string) error
}

// PushGateway is satisfied by *push.ExpoGateway.
type PushGateway interface {
	Send(ctx context.Context, token, title, body string, data map[string]any) (push.Result, error)
}

// Notifier delivers best-effort match notifications. Implementations never
// fail; the outcome is reported in the returned Delivery.
type Notifier interface {
	NotifyMatch(ctx context.Context, ownerID, matchID string, score float64, petName string) models.Delivery
	NotifyMatchConfirmed(ctx context.Context, reporterID, matchID, petName string, ownerPhone *string) models.Delivery
}
