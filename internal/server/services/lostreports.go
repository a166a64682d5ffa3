package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/imagex"
	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
)

type LostReportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      *imageAttacher
	log         logging.Logger
}

func NewLostReportService(db *sql.DB, m repomanager.RepositoryManager, store ObjectStore, index SimilarityIndex, log logging.Logger) *LostReportService {
	log = log.With("module", "lost_reports")
	return &LostReportService{
		db:          db,
		repomanager: m,
		images:      &imageAttacher{db: db, repomanager: m, store: store, index: index, log: log},
		log:         log,
	}
}

// Create registers a lost report with its photo. The photo is indexed under
// the report id and lost date so later sightings can find it. There is no
// search step.
func (s *LostReportService) Create(ctx context.Context, ownerID string, in models.NewLostReport, image []byte) (*models.LostReportIntake, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	petName, species := strings.TrimSpace(in.PetName), strings.TrimSpace(in.Species)
	if petName == "" || species == "" {
		return nil, common.Validationf("pet_name, species and lost_date are required")
	}
	date, err := parseRequiredDate("lost_date", in.LostDate)
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

	report, err := s.repomanager.LostReports(s.db).Create(ctx, &models.LostReport{
		OwnerID:      ownerID,
		PetName:      petName,
		Species:      species,
		Breed:        strings.TrimSpace(in.Breed),
		Description:  strings.TrimSpace(in.Description),
		Status:       models.ReportActive,
		LostDate:     date,
		Location:     in.Location,
		LocationText: strings.TrimSpace(in.LocationText),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "lost report created", "report_id", report.ID, "owner_id", ownerID)

	img, err := s.images.attach(ctx, LostReportImagePrefix, report.ID, report.LostDate, image, info.Format,
		func(p *models.PetImage) { p.ReportID = &report.ID })
	if err != nil {
		return nil, err
	}

	return &models.LostReportIntake{Report: report, Image: img}, nil
}

// Get returns a report with its images.
func (s *LostReportService) Get(ctx context.Context, id string) (*models.LostReport, error) {
	report, err := s.repomanager.LostReports(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	report.Images, err = s.repomanager.PetImages(s.db).ListByReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *LostReportService) List(ctx context.Context, f models.ListFilter) ([]*models.LostReport, models.Page, error) {
	if f.Status != "" {
		if _, err := models.ParseReportStatus(f.Status); err != nil {
			return nil, models.Page{}, err
		}
	}
	f.Normalize()

	reports, total, err := s.repomanager.LostReports(s.db).List(ctx, f)
	if err != nil {
		return nil, models.Page{}, err
	}
	if reports == nil {
		reports = []*models.LostReport{}
	}
	return reports, models.NewPage(total, f.Limit, f.Offset, len(reports)), nil
}

// UpdateStatus moves a report to status on behalf of its owner.
func (s *LostReportService) UpdateStatus(ctx context.Context, callerID, id, status string) (*models.LostReport, error) {
	next, err := models.ParseReportStatus(status)
	if err != nil {
		return nil, err
	}

	var out *models.LostReport
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.LostReports(tx)

		report, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if report.OwnerID != callerID {
			return common.ErrorForbidden
		}
		if err := report.Status.TransitionTo(next); err != nil {
			return err
		}
		if report.Status == next {
			out = report
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

	s.log.Info(ctx, "lost report status changed", "report_id", id, "status", out.Status)
	return out, nil
}
