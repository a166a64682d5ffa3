package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
)

const userColumns = `user_id, email, COALESCE(full_name, ''), phone_number, push_notification_token, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.PushToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.MapError(err)
	}
	return u, nil
}

// Ensure inserts the user on first contact and returns the stored row either
// way. A different user already holding the email yields ErrorConflict.
func (r *PostgresRepository) Ensure(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (user_id, email, full_name)
		 VALUES ($1, $2, NULLIF($3, ''))
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.FullName))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// UpdateProfile applies the non-nil fields. An empty phone clears it.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	query :=
		`UPDATE users
		 SET full_name = COALESCE($2, full_name),
		     phone_number = CASE WHEN $3::text IS NULL THEN phone_number ELSE NULLIF($3, '') END,
		     updated_at = now()
		 WHERE user_id = $1
		 RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, id, upd.FullName, upd.Phone))
}

func (r *PostgresRepository) SetPushToken(ctx context.Context, id string, token *string) error {
	query :=
		`UPDATE users SET push_notification_token = $2, updated_at = now()
		 WHERE user_id = $1`

	res, err := r.db.ExecContext(ctx, query, id, token)
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

// ClearPushToken nulls the token only while it still equals token, so a
// token registered in the meantime survives. It reports whether a row changed.
func (r *PostgresRepository) ClearPushToken(ctx context.Context, id string, token string) (bool, error) {
	query :=
		`UPDATE users SET push_notification_token = NULL, updated_at = now()
		 WHERE user_id = $1 AND push_notification_token = $2`

	res, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
