package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/imagex"
	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
)

// Object key prefixes, one per parent kind.
const (
	LostReportImagePrefix = "lost-pets"
	SightingImagePrefix   = "sightings"
)

// imageAttacher runs the upload, index and persist steps shared by both
// intake paths.
type imageAttacher struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	index       SimilarityIndex
	log         logging.Logger
}

// attach stores data under <prefix>/<parentID>/, registers it with the
// similarity index under parentID and eventDate and records the PetImage.
// link sets the parent reference on the new image.
//
// When the index already holds the photo, the existing PetImage is returned
// only if it belongs to the same parent. A photo registered for another
// report or sighting is a conflict. Whatever was uploaded or indexed for a
// failed attach is removed again.
func (a *imageAttacher) attach(ctx context.Context, prefix, parentID string, eventDate time.Time,
	data []byte, format imagex.Format, link func(*models.PetImage)) (*models.PetImage, error) {

	log := a.log.With("parent_id", parentID)

	key := imagex.ObjectKey(prefix, parentID, data, format)
	url, err := a.store.Upload(ctx, data, key, format.ContentType)
	if err != nil {
		log.Error(ctx, "image upload failed", "key", key, "error", err)
		return nil, err
	}

	reg, err := a.index.Register(ctx, parentID, eventDate, data)
	if err != nil {
		log.Error(ctx, "image registration failed", "url", url, "error", err)
		a.discard(ctx, log, key, "")
		return nil, err
	}
	if reg.Duplicate {
		log.Warn(ctx, "image already indexed", "vector_id", reg.VectorID)
	}

	img := &models.PetImage{URL: url, VectorID: reg.VectorID}
	link(img)

	repo := a.repomanager.PetImages(a.db)
	created, err := repo.Create(ctx, img)
	if err == nil {
		return created, nil
	}

	if reg.Duplicate && errors.Is(err, common.ErrorConflict) {
		existing, gerr := repo.GetByVectorID(ctx, reg.VectorID)
		if gerr != nil {
			a.discard(ctx, log, key, "")
			return nil, gerr
		}
		if !sameParent(existing, img) {
			log.Warn(ctx, "photo belongs to another record", "vector_id", reg.VectorID, "image_id", existing.ID)
			a.discard(ctx, log, key, "")
			return nil, fmt.Errorf("%w: photo is already registered for another report", common.ErrorConflict)
		}
		if existing.URL != url {
			a.discard(ctx, log, key, "")
		}
		log.Info(ctx, "reusing existing image record", "image_id", existing.ID, "vector_id", reg.VectorID)
		return existing, nil
	}

	log.Error(ctx, "saving image failed", "vector_id", reg.VectorID, "error", err)
	vectorID := reg.VectorID
	if reg.Duplicate {
		vectorID = ""
	}
	a.discard(ctx, log, key, vectorID)
	return nil, err
}

// discard removes the object under key and, when vectorID is set, the
// index entry. Failures are logged only.
func (a *imageAttacher) discard(ctx context.Context, log logging.Logger, key, vectorID string) {
	if err := a.store.Delete(ctx, key); err != nil {
		log.Error(ctx, "removing stored object failed", "key", key, "error", err)
	}
	if vectorID == "" {
		return
	}
	if err := a.index.Delete(ctx, vectorID); err != nil {
		log.Error(ctx, "removing index entry failed", "vector_id", vectorID, "error", err)
	}
}

func sameParent(a, b *models.PetImage) bool {
	return equalRef(a.ReportID, b.ReportID) && equalRef(a.SightingID, b.SightingID)
}

func equalRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
