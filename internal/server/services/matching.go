package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/imagex"
	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/petmatch/internal/server/similarity"
	"github.com/dmitrijs2005/petmatch/internal/timex"
)

// Matching policy. The window is relative to the sighting date.
const (
	SearchWindowBefore = 30 * 24 * time.Hour
	SearchWindowAfter  = 7 * 24 * time.Hour
	MaxSearchResults   = 20
	MinSimilarity      = 0.75
)

// MatchingService runs the sighting intake pipeline.
type MatchingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      *imageAttacher
	store       ObjectStore
	index       SimilarityIndex
	notifier    Notifier
	log         logging.Logger
}

func NewMatchingService(db *sql.DB, m repomanager.RepositoryManager, store ObjectStore, index SimilarityIndex,
	notifier Notifier, log logging.Logger) *MatchingService {
	log = log.With("module", "matching")
	return &MatchingService{
		db:          db,
		repomanager: m,
		images:      &imageAttacher{db: db, repomanager: m, store: store, index: index, log: log},
		store:       store,
		index:       index,
		notifier:    notifier,
		log:         log,
	}
}

// SearchWindow returns the inclusive event date range searched for a
// sighting made on d.
func SearchWindow(d time.Time) (time.Time, time.Time) {
	return d.Add(-SearchWindowBefore), d.Add(SearchWindowAfter)
}

func parseRequiredDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, common.Validationf("%s is required", field)
	}
	d, err := timex.ParseDate(raw)
	if err != nil {
		return time.Time{}, common.Validationf("%s must be YYYY-MM-DD", field)
	}
	return d, nil
}

// HandleNewSighting registers a sighting reported by reporterID and matches
// it against active lost reports.
//
// Input and image are validated before anything is written. Failures to
// store, index or search the photo fail the request and leave the sighting
// row in place. After a failed search the photo is already stored, so the
// reporter can run matching again with Rematch.
func (s *MatchingService) HandleNewSighting(ctx context.Context, reporterID string, in models.NewSighting, image []byte) (*models.SightingIntake, error) {
	if reporterID == "" {
		return nil, common.ErrorUnauthorized
	}
	date, err := parseRequiredDate("sighting_date", in.SightingDate)
	if err != nil {
		return nil, err
	}
	if in.Location != nil {
		if err := in.Location.Validate(); err != nil {
			return nil, err
		}
	}
	info, err := imagex.Inspect(image)
	if err != nil {
		return nil, err
	}

	sighting, err := s.repomanager.Sightings(s.db).Create(ctx, &models.Sighting{
		ReporterID:   reporterID,
		Description:  strings.TrimSpace(in.Description),
		Status:       models.SightingOnStreet,
		SightingDate: date,
		Location:     in.Location,
		LocationText: strings.TrimSpace(in.LocationText),
	})
	if err != nil {
		return nil, err
	}
	log := s.log.With("sighting_id", sighting.ID)
	log.Info(ctx, "sighting created", "reporter_id", reporterID)

	img, err := s.images.attach(ctx, SightingImagePrefix, sighting.ID, sighting.SightingDate, image, info.Format,
		func(p *models.PetImage) { p.SightingID = &sighting.ID })
	if err != nil {
		return nil, err
	}

	matches, err := s.MatchSighting(ctx, sighting, image)
	if err != nil {
		log.Error(ctx, "similarity search failed", "error", err)
		return nil, err
	}

	return &models.SightingIntake{
		Sighting:   sighting,
		Image:      img,
		MatchCount: len(matches),
		Matches:    matches,
	}, nil
}

// MatchSighting searches for lost reports resembling image and records a
// Pending match for each acceptable candidate, in search order.
//
// Only a failed search is returned as an error. Per-candidate failures are
// logged and skipped, and a pair that is already matched is skipped, so
// running it again for the same sighting creates no duplicates.
func (s *MatchingService) MatchSighting(ctx context.Context, sighting *models.Sighting, image []byte) ([]models.MatchRef, error) {
	log := s.log.With("sighting_id", sighting.ID)

	from, to := SearchWindow(sighting.SightingDate)
	candidates, err := s.index.Search(ctx, image, similarity.Query{
		MinDate:    from,
		MaxDate:    to,
		MaxResults: MaxSearchResults,
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "candidates found", "count", len(candidates),
		"from", timex.FormatDate(from), "to", timex.FormatDate(to))

	refs := make([]models.MatchRef, 0, len(candidates))
	for _, c := range candidates {
		if c.SubjectID == sighting.ID {
			// The sighting's own photo, registered just before the search.
			continue
		}
		if c.Similarity < MinSimilarity {
			continue
		}
		if ref, ok := s.matchCandidate(ctx, log, sighting, c); ok {
			refs = append(refs, ref)
		}
	}

	log.Info(ctx, "matching finished", "matches", len(refs))
	return refs, nil
}

func (s *MatchingService) matchCandidate(ctx context.Context, log logging.Logger, sighting *models.Sighting, c similarity.Candidate) (models.MatchRef, bool) {
	log = log.With("report_id", c.SubjectID, "similarity", c.Similarity)

	report, err := s.repomanager.LostReports(s.db).GetByID(ctx, c.SubjectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			log.Info(ctx, "candidate skipped: no such report")
		} else {
			log.Error(ctx, "candidate lookup failed", "error", err)
		}
		return models.MatchRef{}, false
	}
	if report.Status != models.ReportActive {
		log.Info(ctx, "candidate skipped: report not active", "status", report.Status)
		return models.MatchRef{}, false
	}

	match, err := s.repomanager.Matches(s.db).Create(ctx, report.ID, sighting.ID, c.Similarity)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			log.Info(ctx, "candidate skipped: already matched")
		} else {
			log.Error(ctx, "saving match failed", "error", err)
		}
		return models.MatchRef{}, false
	}

	d := s.notifier.NotifyMatch(ctx, report.OwnerID, match.ID, match.Score, report.PetName)
	if !d.Delivered {
		log.Warn(ctx, "owner not notified", "match_id", match.ID, "reason", d.Reason)
	}

	return models.MatchRef{ID: match.ID, ReportID: report.ID, Score: match.Score}, true
}

// Rematch re-runs matching for a sighting using its stored photo. Only the
// reporter may do so.
func (s *MatchingService) Rematch(ctx context.Context, callerID, sightingID string) (*models.SightingIntake, error) {
	sighting, err := s.repomanager.Sightings(s.db).GetByID(ctx, sightingID)
	if err != nil {
		return nil, err
	}
	if sighting.ReporterID != callerID {
		return nil, common.ErrorForbidden
	}

	images, err := s.repomanager.PetImages(s.db).ListBySighting(ctx, sightingID)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: sighting has no image", common.ErrorNotFound)
	}
	img := images[0]

	key, ok := s.store.KeyFromURL(img.URL)
	if !ok {
		return nil, fmt.Errorf("%w: image %s is not in the configured bucket", common.ErrorInternal, img.ID)
	}
	data, err := s.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}

	matches, err := s.MatchSighting(ctx, sighting, data)
	if err != nil {
		return nil, err
	}
	sighting.Images = images

	return &models.SightingIntake{
		Sighting:   sighting,
		Image:      img,
		MatchCount: len(matches),
		Matches:    matches,
	}, nil
}
