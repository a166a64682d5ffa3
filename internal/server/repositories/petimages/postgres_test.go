package petimages

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"image_id", "s3_url", "vector_id", "report_id", "sighting_id", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func ptr(s string) *string { return &s }

func TestCreate_ForSighting(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+pet_images.*VALUES\s*\(\$1, \$2, \$3, \$4\)`).
		WithArgs("http://s3/a.jpg", "v-1", nil, "s-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("i-1", "http://s3/a.jpg", "v-1", nil, "s-1", now))

	got, err := repo.Create(context.Background(), &models.PetImage{URL: "http://s3/a.jpg", VectorID: "v-1", SightingID: ptr("s-1")})
	require.NoError(t, err)
	assert.Equal(t, "i-1", got.ID)
	assert.Nil(t, got.ReportID)
	require.NotNil(t, got.SightingID)
	assert.Equal(t, "s-1", *got.SightingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RejectsBothParents(t *testing.T) {
	repo, _ := newRepoWithMock(t)

	_, err := repo.Create(context.Background(), &models.PetImage{
		URL: "u", VectorID: "v", ReportID: ptr("r"), SightingID: ptr("s"),
	})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = repo.Create(context.Background(), &models.PetImage{URL: "u", VectorID: "v"})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestCreate_DuplicateVectorID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO pet_images`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "pet_images_vector_id_key"})

	_, err := repo.Create(context.Background(), &models.PetImage{URL: "u", VectorID: "v", ReportID: ptr("r")})
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestGetByVectorID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`WHERE vector_id = \$1`).WithArgs("v-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("i-1", "u", "v-1", "r-1", nil, now))

	got, err := repo.GetByVectorID(context.Background(), "v-1")
	require.NoError(t, err)
	require.NotNil(t, got.ReportID)
	assert.Equal(t, "r-1", *got.ReportID)

	mock.ExpectQuery(`WHERE vector_id = \$1`).WithArgs("v-2").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByVectorID(context.Background(), "v-2")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByReport(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`WHERE report_id = \$1 ORDER BY created_at$`).WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("i-1", "u1", "v-1", "r-1", nil, now).
			AddRow("i-2", "u2", "v-2", "r-1", nil, now))

	got, err := repo.ListByReport(context.Background(), "r-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u2", got[1].URL)
}

func TestListBySighting_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE sighting_id = \$1`).WithArgs("s-9").WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.ListBySighting(context.Background(), "s-9")
	require.NoError(t, err)
	assert.Empty(t, got)
}
