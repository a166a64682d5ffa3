// Package matches persists proposed lost report / sighting pairs.
package matches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

const matchColumns = `match_id, report_id, sighting_id, ai_distance_score, status, created_at, updated_at`

const detailsSelect = `SELECT m.match_id, m.report_id, m.sighting_id, m.ai_distance_score, m.status, m.created_at, m.updated_at,
	COALESCE(r.pet_name, ''), COALESCE(r.species, ''), COALESCE(r.breed, ''), r.owner_user_id, u.phone_number,
	r.status, r.lost_date, s.reporter_user_id, s.sighting_date, COALESCE(s.location_text, ''), s.status
	FROM matches m
	JOIN lost_pet_reports r ON r.report_id = m.report_id
	JOIN sighting_reports s ON s.sighting_id = m.sighting_id
	JOIN users u ON u.user_id = r.owner_user_id`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(s scanner) (*models.Match, error) {
	m := &models.Match{}
	if err := s.Scan(&m.ID, &m.ReportID, &m.SightingID, &m.Score, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func scanDetails(s scanner) (*models.MatchDetails, error) {
	d := &models.MatchDetails{}
	var phone sql.NullString
	err := s.Scan(&d.ID, &d.ReportID, &d.SightingID, &d.Score, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.PetName, &d.Species, &d.Breed, &d.OwnerID, &phone,
		&d.ReportStatus, &d.LostDate, &d.ReporterID, &d.SightingDate, &d.LocationText, &d.SightingStatus)
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		d.OwnerPhone = &phone.String
	}
	return d, nil
}

// Create inserts a Pending match. A second match for the same pair yields
// common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, reportID, sightingID string, score float64) (*models.Match, error) {
	if err := models.ValidateScore(score); err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO matches (report_id, sighting_id, ai_distance_score, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING ` + matchColumns

	m, err := scanMatch(r.db.QueryRowContext(ctx, query, reportID, sightingID, score, string(models.MatchPending)))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return m, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE match_id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

// GetDetails returns the match joined with its report, sighting and the
// report owner's phone number.
func (r *PostgresRepository) GetDetails(ctx context.Context, id string) (*models.MatchDetails, error) {
	return r.getDetails(ctx, detailsSelect+` WHERE m.match_id = $1`, id)
}

// GetDetailsForUpdate is GetDetails with the match row locked until the
// surrounding transaction ends.
func (r *PostgresRepository) GetDetailsForUpdate(ctx context.Context, id string) (*models.MatchDetails, error) {
	return r.getDetails(ctx, detailsSelect+` WHERE m.match_id = $1 FOR UPDATE OF m`, id)
}

func (r *PostgresRepository) getDetails(ctx context.Context, query, id string) (*models.MatchDetails, error) {
	d, err := scanDetails(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// Update applies the non-nil fields of upd. Transition rules are the
// caller's concern; only the value ranges are checked here.
func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.MatchUpdate) (*models.Match, error) {
	var score *float64
	var status *string
	if upd.Score != nil {
		if err := models.ValidateScore(*upd.Score); err != nil {
			return nil, err
		}
		score = upd.Score
	}
	if upd.Status != nil {
		st, err := models.ParseMatchStatus(string(*upd.Status))
		if err != nil {
			return nil, err
		}
		s := string(st)
		status = &s
	}

	query :=
		`UPDATE matches SET
		     ai_distance_score = COALESCE($2, ai_distance_score),
		     status = COALESCE($3, status),
		     updated_at = now()
		 WHERE match_id = $1
		 RETURNING ` + matchColumns

	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id, score, status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.MapError(err)
	}
	return m, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE match_id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
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

// ListByOwner returns one page of the matches on reports owned by ownerID,
// best score first, and the total count. An empty status lists all.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, status string, limit, offset int) ([]*models.MatchDetails, int, error) {
	var args dbx.Args
	where := ` WHERE r.owner_user_id = ` + args.Add(ownerID)
	if status != "" {
		where += ` AND m.status = ` + args.Add(status)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM matches m JOIN lost_pet_reports r ON r.report_id = m.report_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args.Values()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query := detailsSelect + where + `
		ORDER BY m.ai_distance_score DESC, m.created_at DESC
		LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.MatchDetails
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return out, total, nil
}
