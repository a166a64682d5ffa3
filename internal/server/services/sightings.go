package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
)

// SightingService covers the sighting operations outside the intake
// pipeline. Creation lives in MatchingService.
type SightingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	index       SimilarityIndex
	log         logging.Logger
}

func NewSightingService(db *sql.DB, m repomanager.RepositoryManager, store ObjectStore, index SimilarityIndex, log logging.Logger) *SightingService {
	return &SightingService{db: db, repomanager: m, store: store, index: index, log: log.With("module", "sightings")}
}

func (s *SightingService) Get(ctx context.Context, id string) (*models.Sighting, error) {
	sighting, err := s.repomanager.Sightings(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sighting.Images, err = s.repomanager.PetImages(s.db).ListBySighting(ctx, id)
	if err != nil {
		return nil, err
	}
	return sighting, nil
}

func (s *SightingService) List(ctx context.Context, f models.ListFilter) ([]*models.Sighting, models.Page, error) {
	if f.Status != "" {
		if _, err := models.ParseSightingStatus(f.Status); err != nil {
			return nil, models.Page{}, err
		}
	}
	f.Species = ""
	f.Normalize()

	sightings, total, err := s.repomanager.Sightings(s.db).List(ctx, f)
	if err != nil {
		return nil, models.Page{}, err
	}
	if sightings == nil {
		sightings = []*models.Sighting{}
	}
	return sightings, models.NewPage(total, f.Limit, f.Offset, len(sightings)), nil
}

// UpdateStatus moves a sighting to status on behalf of its reporter.
func (s *SightingService) UpdateStatus(ctx context.Context, callerID, id, status string) (*models.Sighting, error) {
	next, err := models.ParseSightingStatus(status)
	if err != nil {
		return nil, err
	}

	var out *models.Sighting
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Sightings(tx)

		sighting, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if sighting.ReporterID != callerID {
			return common.ErrorForbidden
		}
		if err := sighting.Status.TransitionTo(next); err != nil {
			return err
		}
		if sighting.Status == next {
			out = sighting
			return nil
		}
		if err := repo.UpdateStatus(ctx, id, next); err != nil {
			return err
		}
		out, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "sighting status changed", "sighting_id", id, "status", out.Status)
	return out, nil
}

// Update edits a sighting on behalf of its reporter. Text fields are
// trimmed, and a status change follows the same rules as UpdateStatus.
func (s *SightingService) Update(ctx context.Context, callerID, id string, upd models.SightingUpdate) (*models.Sighting, error) {
	if upd.IsEmpty() {
		return nil, common.Validationf("nothing to update")
	}
	if upd.Location != nil {
		if err := upd.Location.Validate(); err != nil {
			return nil, err
		}
	}
	upd.Description = trimmed(upd.Description)
	upd.LocationText = trimmed(upd.LocationText)

	var out *models.Sighting
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Sightings(tx)

		sighting, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if sighting.ReporterID != callerID {
			return common.ErrorForbidden
		}
		if upd.Status != nil {
			if err := sighting.Status.TransitionTo(*upd.Status); err != nil {
				return err
			}
		}
		if err := repo.Update(ctx, id, upd); err != nil {
			return err
		}
		out, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "sighting updated", "sighting_id", id)
	return out, nil
}

// Delete removes a sighting on behalf of its reporter together with its
// images and matches. Stored photos and their index entries are removed
// after the commit; failures there are logged and do not fail the call.
func (s *SightingService) Delete(ctx context.Context, callerID, id string) error {
	var images []*models.PetImage
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sighting, err := s.repomanager.Sightings(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		if sighting.ReporterID != callerID {
			return common.ErrorForbidden
		}
		if images, err = s.repomanager.PetImages(tx).ListBySighting(ctx, id); err != nil {
			return err
		}
		return s.repomanager.Sightings(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	log := s.log.With("sighting_id", id)
	for _, img := range images {
		if key, ok := s.store.KeyFromURL(img.URL); ok {
			if err := s.store.Delete(ctx, key); err != nil {
				log.Error(ctx, "removing stored photo failed", "key", key, "error", err)
			}
		} else {
			log.Warn(ctx, "photo is outside the configured bucket", "url", img.URL)
		}
		if err := s.index.Delete(ctx, img.VectorID); err != nil {
			log.Error(ctx, "removing index entry failed", "vector_id", img.VectorID, "error", err)
		}
	}

	log.Info(ctx, "sighting deleted", "images", len(images))
	return nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
