package dbx

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func pgCode(err error) (string, string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	code, _, ok := pgCode(err)
	return ok && code == codeUniqueViolation
}

// IsCheckViolation reports whether err is a CHECK constraint violation.
func IsCheckViolation(err error) bool {
	code, _, ok := pgCode(err)
	return ok && code == codeCheckViolation
}

// MapError translates driver errors into the common taxonomy:
// unique violations become ErrorConflict, check violations ErrorValidation and
// foreign key violations ErrorNotFound. Anything else is wrapped as a plain
// db error.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	code, constraint, ok := pgCode(err)
	if ok {
		switch code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrorConflict, constraint)
		case codeCheckViolation:
			return fmt.Errorf("%w: %s", common.ErrorValidation, constraint)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", common.ErrorNotFound, constraint)
		}
	}
	return fmt.Errorf("db error: %w", err)
}
