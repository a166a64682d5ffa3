// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/server/migrations"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/lostreports"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/matches"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/petimages"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/sightings"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) LostReports(db dbx.DBTX) lostreports.Repository {
	return lostreports.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sightings(db dbx.DBTX) sightings.Repository {
	return sightings.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) PetImages(db dbx.DBTX) petimages.Repository {
	return petimages.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Matches(db dbx.DBTX) matches.Repository {
	return matches.NewPostgresRepository(db)
}

// seams for tests
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	gooseVersion = func(ctx context.Context, db *sql.DB) (int64, error) {
		return goose.GetDBVersionContext(ctx, db)
	}
)

func setupGoose() error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.SetDialect("pgx")
}

// RunMigrations applies the embedded migrations that are not yet recorded
// in the goose version table.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// MigrationVersion reports the latest applied migration.
func (m *PostgresRepositoryManager) MigrationVersion(ctx context.Context, db *sql.DB) (int64, error) {
	if err := setupGoose(); err != nil {
		return 0, err
	}
	return gooseVersion(ctx, db)
}

func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
