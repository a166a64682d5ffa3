package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/petmatch/internal/dbx"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/lostreports"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/matches"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/petimages"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/sightings"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	MigrationVersion(context.Context, *sql.DB) (int64, error)
	Users(db dbx.DBTX) users.Repository
	LostReports(db dbx.DBTX) lostreports.Repository
	Sightings(db dbx.DBTX) sightings.Repository
	PetImages(db dbx.DBTX) petimages.Repository
	Matches(db dbx.DBTX) matches.Repository
}
