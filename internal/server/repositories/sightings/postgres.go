// Package sightings persists reports of animals seen in the street or taken
// to a shelter.
package sightings

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

var sightingColumns = func() string {
	coords, err := geo.ExtractCoordinates("location")
	if err != nil {
		panic(err)
	}
	return `sighting_id, reporter_user_id, COALESCE(description, ''), status, sighting_date, ` + coords + `,
	COALESCE(location_text, ''), created_at, updated_at`
}()

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSighting(s scanner, extra ...any) (*models.Sighting, error) {
	m := &models.Sighting{}
	var lon, lat sql.NullFloat64
	dest := []any{&m.ID, &m.ReporterID, &m.Description, &m.Status, &m.SightingDate,
		&lon, &lat, &m.LocationText, &m.CreatedAt, &m.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if lon.Valid && lat.Valid {
		m.Location = &geo.Point{Longitude: lon.Float64, Latitude: lat.Float64}
	}
	return m, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Sighting) (*models.Sighting, error) {
	var args dbx.Args

	status := s.Status
	if status == "" {
		status = models.SightingOnStreet
	}

	values := []string{
		args.Add(s.ReporterID),
		"NULLIF(" + args.Add(s.Description) + ", '')",
		args.Add(string(status)),
		args.Add(s.SightingDate),
	}

	location := "NULL"
	if s.Location != nil {
		expr, err := geo.MakePoint(&args, s.Location.Longitude, s.Location.Latitude)
		if err != nil {
			return nil, err
		}
		location = expr
	}
	values = append(values, location, "NULLIF("+args.Add(s.LocationText)+", '')")

	query :=
		`INSERT INTO sighting_reports (reporter_user_id, description, status, sighting_date, location, location_text)
		 VALUES (` + strings.Join(values, ", ") + `)
		 RETURNING ` + sightingColumns

	created, err := scanSighting(r.db.QueryRowContext(ctx, query, args.Values()...))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Sighting, error) {
	query := `SELECT ` + sightingColumns + ` FROM sighting_reports WHERE sighting_id = $1`

	s, err := scanSighting(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func buildWhere(args *dbx.Args, f models.ListFilter) (string, error) {
	var conds []string
	if f.Status != "" {
		conds = append(conds, "status = "+args.Add(f.Status))
	}
	if f.DateFrom != nil {
		conds = append(conds, "sighting_date >= "+args.Add(*f.DateFrom))
	}
	if f.DateTo != nil {
		conds = append(conds, "sighting_date <= "+args.Add(*f.DateTo))
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

// List returns one page of sightings matching f and the total count. Species
// is not recorded on sightings and is ignored.
func (r *PostgresRepository) List(ctx context.Context, f models.ListFilter) ([]*models.Sighting, int, error) {
	f.Normalize()

	var countArgs dbx.Args
	where, err := buildWhere(&countArgs, f)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sighting_reports`+where, countArgs.Values()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	var args dbx.Args
	where, _ = buildWhere(&args, f)

	distance, order := "NULL::double precision", "sighting_date DESC, created_at DESC"
	if f.Radius != nil {
		distance, err = geo.Distance(&args, "location", f.Radius.Center.Longitude, f.Radius.Center.Latitude)
		if err != nil {
			return nil, 0, err
		}
		order = "distance_meters ASC"
	}

	query := `SELECT ` + sightingColumns + `, ` + distance + ` AS distance_meters,
		COALESCE((SELECT s3_url FROM pet_images WHERE pet_images.sighting_id = sighting_reports.sighting_id
		          ORDER BY created_at LIMIT 1), '') AS image_url
		FROM sighting_reports` + where + `
		ORDER BY ` + order + `
		LIMIT ` + args.Add(f.Limit) + ` OFFSET ` + args.Add(f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Sighting
	for rows.Next() {
		var dist sql.NullFloat64
		var imageURL string
		s, err := scanSighting(rows, &dist, &imageURL)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		if dist.Valid {
			s.DistanceMeters = &dist.Float64
		}
		s.ImageURL = imageURL
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return out, total, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.SightingStatus) error {
	return execOne(ctx, r.db,
		`UPDATE sighting_reports SET status = $2, updated_at = now() WHERE sighting_id = $1`, id, string(status))
}

// Update applies the non-nil fields of upd.
func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.SightingUpdate) error {
	if upd.IsEmpty() {
		return common.Validationf("nothing to update")
	}

	var args dbx.Args
	var sets []string
	if upd.Description != nil {
		sets = append(sets, "description = NULLIF("+args.Add(*upd.Description)+", '')")
	}
	if upd.LocationText != nil {
		sets = append(sets, "location_text = NULLIF("+args.Add(*upd.LocationText)+", '')")
	}
	if upd.Location != nil {
		expr, err := geo.MakePoint(&args, upd.Location.Longitude, upd.Location.Latitude)
		if err != nil {
			return err
		}
		sets = append(sets, "location = "+expr)
	}
	if upd.Status != nil {
		sets = append(sets, "status = "+args.Add(string(*upd.Status)))
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE sighting_reports SET ` + strings.Join(sets, ", ") + ` WHERE sighting_id = ` + args.Add(id)

	return execOne(ctx, r.db, query, args.Values()...)
}

// Delete removes the sighting. Its images and matches go with it.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return execOne(ctx, r.db, `DELETE FROM sighting_reports WHERE sighting_id = $1`, id)
}

func execOne(ctx context.Context, db dbx.DBTX, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
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
