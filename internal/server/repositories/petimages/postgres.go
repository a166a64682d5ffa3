// Package petimages persists the link between a stored photo, its entry in
// the similarity index and the report or sighting it belongs to.
package petimages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

const imageColumns = `image_id, s3_url, vector_id, report_id::text, sighting_id::text, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*models.PetImage, error) {
	img := &models.PetImage{}
	var reportID, sightingID sql.NullString
	if err := s.Scan(&img.ID, &img.URL, &img.VectorID, &reportID, &sightingID, &img.CreatedAt); err != nil {
		return nil, err
	}
	if reportID.Valid {
		img.ReportID = &reportID.String
	}
	if sightingID.Valid {
		img.SightingID = &sightingID.String
	}
	return img, nil
}

// Create stores img. A vector id that is already linked yields
// common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, img *models.PetImage) (*models.PetImage, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO pet_images (s3_url, vector_id, report_id, sighting_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING ` + imageColumns

	created, err := scanImage(r.db.QueryRowContext(ctx, query, img.URL, img.VectorID, img.ReportID, img.SightingID))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByVectorID(ctx context.Context, vectorID string) (*models.PetImage, error) {
	img, err := scanImage(r.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM pet_images WHERE vector_id = $1`, vectorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return img, nil
}

func (r *PostgresRepository) ListByReport(ctx context.Context, reportID string) ([]*models.PetImage, error) {
	return r.list(ctx, `SELECT `+imageColumns+` FROM pet_images WHERE report_id = $1 ORDER BY created_at`, reportID)
}

func (r *PostgresRepository) ListBySighting(ctx context.Context, sightingID string) ([]*models.PetImage, error) {
	return r.list(ctx, `SELECT `+imageColumns+` FROM pet_images WHERE sighting_id = $1 ORDER BY created_at`, sightingID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, id string) ([]*models.PetImage, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.PetImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
