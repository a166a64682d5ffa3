// Package lostreports persists lost pet reports.
package lostreports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/geo"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

var coordinates = mustCoordinates()

func mustCoordinates() string {
	c, err := geo.ExtractCoordinates("location")
	if err != nil {
		panic(err)
	}
	return c
}

var reportColumns = `report_id, owner_user_id, COALESCE(pet_name, ''), COALESCE(species, ''), COALESCE(breed, ''),
	COALESCE(description, ''), status, lost_date, ` + coordinates + `,
	COALESCE(last_seen_location_text, ''), created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner, extra ...any) (*models.LostReport, error) {
	r := &models.LostReport{}
	var lon, lat sql.NullFloat64
	dest := []any{&r.ID, &r.OwnerID, &r.PetName, &r.Species, &r.Breed, &r.Description,
		&r.Status, &r.LostDate, &lon, &lat, &r.LocationText, &r.CreatedAt, &r.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if lon.Valid && lat.Valid {
		r.Location = &geo.Point{Longitude: lon.Float64, Latitude: lat.Float64}
	}
	return r, nil
}

func (r *PostgresRepository) Create(ctx context.Context, report *models.LostReport) (*models.LostReport, error) {
	var args dbx.Args

	values := []string{
		args.Add(report.OwnerID),
		"NULLIF(" + args.Add(report.PetName) + ", '')",
		"NULLIF(" + args.Add(report.Species) + ", '')",
		"NULLIF(" + args.Add(report.Breed) + ", '')",
		"NULLIF(" + args.Add(report.Description) + ", '')",
		args.Add(string(report.Status)),
		args.Add(report.LostDate),
	}

	location := "NULL"
	if report.Location != nil {
		expr, err := geo.MakePoint(&args, report.Location.Longitude, report.Location.Latitude)
		if err != nil {
			return nil, err
		}
		location = expr
	}
	values = append(values, location, "NULLIF("+args.Add(report.LocationText)+", '')")

	query :=
		`INSERT INTO lost_pet_reports (owner_user_id, pet_name, species, breed, description, status,
		     lost_date, location, last_seen_location_text)
		 VALUES (` + strings.Join(values, ", ") + `)
		 RETURNING ` + reportColumns

	created, err := scanReport(r.db.QueryRowContext(ctx, query, args.Values()...))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.LostReport, error) {
	query := `SELECT ` + reportColumns + ` FROM lost_pet_reports WHERE report_id = $1`

	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return report, nil
}

func buildWhere(args *dbx.Args, f models.ListFilter) (string, error) {
	var conds []string
	if f.Status != "" {
		conds = append(conds, "status = "+args.Add(f.Status))
	}
	if f.Species != "" {
		conds = append(conds, "species = "+args.Add(f.Species))
	}
	if f.DateFrom != nil {
		conds = append(conds, "lost_date >= "+args.Add(*f.DateFrom))
	}
	if f.DateTo != nil {
		conds = append(conds, "lost_date <= "+args.Add(*f.DateTo))
	}
	if f.Radius != nil {
		pred, err := geo.WithinRadius(args, "location", f.Radius.Center.Longitude, f.Radius.Center.Latitude, f.Radius.Meters)
		if err != nil {
			return "", err
		}
		conds = append(conds, pred)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

// List returns one page of reports matching f together with the total count.
// With a radius filter the page is ordered by distance, otherwise by lost
// date, newest first.
func (r *PostgresRepository) List(ctx context.Context, f models.ListFilter) ([]*models.LostReport, int, error) {
	f.Normalize()

	var countArgs dbx.Args
	where, err := buildWhere(&countArgs, f)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lost_pet_reports`+where, countArgs.Values()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	var args dbx.Args
	where, _ = buildWhere(&args, f)

	distance, order := "NULL::double precision", "lost_date DESC, created_at DESC"
	if f.Radius != nil {
		distance, err = geo.Distance(&args, "location", f.Radius.Center.Longitude, f.Radius.Center.Latitude)
		if err != nil {
			return nil, 0, err
		}
		order = "distance_meters ASC"
	}

	query := `SELECT ` + reportColumns + `, ` + distance + ` AS distance_meters,
		COALESCE((SELECT s3_url FROM pet_images WHERE pet_images.report_id = lost_pet_reports.report_id
		          ORDER BY created_at LIMIT 1), '') AS image_url
		FROM lost_pet_reports` + where + `
		ORDER BY ` + order + `
		LIMIT ` + args.Add(f.Limit) + ` OFFSET ` + args.Add(f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.LostReport
	for rows.Next() {
		var dist sql.NullFloat64
		var imageURL string
		report, err := scanReport(rows, &dist, &imageURL)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		if dist.Valid {
			report.DistanceMeters = &dist.Float64
		}
		report.ImageURL = imageURL
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return out, total, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error {
	query :=
		`UPDATE lost_pet_reports SET status = $2, updated_at = now()
		 WHERE report_id = $1`

	res, err := r.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
