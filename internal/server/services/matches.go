package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
)

// MatchService handles the owner-facing review of matches. Matches are only
// created by MatchingService.
type MatchService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    Notifier
	log         logging.Logger
}

func NewMatchService(db *sql.DB, m repomanager.RepositoryManager, notifier Notifier, log logging.Logger) *MatchService {
	return &MatchService{db: db, repomanager: m, notifier: notifier, log: log.With("module", "matches")}
}

// Get returns a match to the report owner or the sighting reporter.
func (s *MatchService) Get(ctx context.Context, callerID, id string) (*models.MatchDetails, error) {
	d, err := s.repomanager.Matches(s.db).GetDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != callerID && d.ReporterID != callerID {
		return nil, common.ErrorForbidden
	}
	return d, nil
}

// ListMine lists matches on the caller's lost reports, best score first.
func (s *MatchService) ListMine(ctx context.Context, callerID, status string, limit, offset int) ([]*models.MatchDetails, models.Page, error) {
	if status != "" {
		if _, err := models.ParseMatchStatus(status); err != nil {
			return nil, models.Page{}, err
		}
	}
	f := models.ListFilter{Limit: limit, Offset: offset}
	f.Normalize()

	list, total, err := s.repomanager.Matches(s.db).ListByOwner(ctx, callerID, status, f.Limit, f.Offset)
	if err != nil {
		return nil, models.Page{}, err
	}
	if list == nil {
		list = []*models.MatchDetails{}
	}
	return list, models.NewPage(total, f.Limit, f.Offset, len(list)), nil
}

// UpdateStatus is Update with only the status set.
func (s *MatchService) UpdateStatus(ctx context.Context, callerID, id, status string) (*models.MatchDetails, error) {
	next, err := models.ParseMatchStatus(status)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, callerID, id, models.MatchUpdate{Status: &next})
}

// Update changes the score and/or status of a match on behalf of the report
// owner. The match row is locked while the transition is checked, so of two
// concurrent confirmations only the first notifies the sighting reporter,
// once the change is committed.
func (s *MatchService) Update(ctx context.Context, callerID, id string, upd models.MatchUpdate) (*models.MatchDetails, error) {
	if upd.Score == nil && upd.Status == nil {
		return nil, common.Validationf("nothing to update")
	}
	if upd.Score != nil {
		if err := models.ValidateScore(*upd.Score); err != nil {
			return nil, err
		}
	}

	var before, after *models.MatchDetails
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Matches(tx)

		var err error
		before, err = repo.GetDetailsForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if before.OwnerID != callerID {
			return common.ErrorForbidden
		}
		if upd.Status != nil {
			if err := before.Status.TransitionTo(*upd.Status); err != nil {
				return err
			}
		}
		if _, err := repo.Update(ctx, id, upd); err != nil {
			return err
		}
		after, err = repo.GetDetails(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "match updated", "match_id", id, "status", after.Status, "score", after.Score)

	if before.Status != models.MatchConfirmed && after.Status == models.MatchConfirmed {
		d := s.notifier.NotifyMatchConfirmed(ctx, after.ReporterID, after.ID, after.PetName, after.OwnerPhone)
		if !d.Delivered {
			s.log.Warn(ctx, "reporter not notified", "match_id", id, "reason", d.Reason)
		}
	}
	return after, nil
}

// Delete removes a match on behalf of the report owner.
func (s *MatchService) Delete(ctx context.Context, callerID, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Matches(tx)

		d, err := repo.GetDetailsForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d.OwnerID != callerID {
			return common.ErrorForbidden
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		s.log.Info(ctx, "match deleted", "match_id", id, "report_id", d.ReportID)
		return nil
	})
}
