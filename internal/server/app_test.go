package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/petmatch/internal/server/config"
	"github.com/dmitrijs2005/petmatch/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopStore struct{ services.ObjectStore }

func stubDeps(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	origDB, origStore := openDB, newObjectStore
	openDB = func(string) (*sql.DB, error) { return db, nil }
	newObjectStore = func(context.Context, *config.Config) (services.ObjectStore, error) { return nopStore{}, nil }
	t.Cleanup(func() {
		openDB, newObjectStore = origDB, origStore
		_ = db.Close()
	})
	return mock
}

func testConfig(similarityURL string) *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.SimilarityURL = similarityURL
	c.LogLevel = "error"
	return c
}

func TestNewApp_ServesHealth(t *testing.T) {
	stubDeps(t)

	app, err := NewApp(context.Background(), testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/matches", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewApp_PropagatesInitErrors(t *testing.T) {
	stubDeps(t)
	newObjectStore = func(context.Context, *config.Config) (services.ObjectStore, error) {
		return nil, errors.New("no credentials")
	}

	_, err := NewApp(context.Background(), testConfig("http://127.0.0.1:1"))
	require.ErrorContains(t, err, "object store init error: no credentials")

	openDB = func(string) (*sql.DB, error) { return nil, errors.New("bad dsn") }
	_, err = NewApp(context.Background(), testConfig("http://127.0.0.1:1"))
	require.ErrorContains(t, err, "db open error: bad dsn")
}

func TestHealthChecks(t *testing.T) {
	mock := stubDeps(t)

	sim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"status": "healthy"}})
	}))
	defer sim.Close()

	app, err := NewApp(context.Background(), testConfig(sim.URL))
	require.NoError(t, err)

	checks := app.healthChecks()
	require.Len(t, checks, 2)

	mock.ExpectPing()
	assert.NoError(t, checks[0].Run(context.Background()))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, checks[0].Run(context.Background()))

	assert.NoError(t, checks[1].Run(context.Background()))
	sim.Close()
	assert.Error(t, checks[1].Run(context.Background()))
}

func TestRun_FailsWhenMigrationsFail(t *testing.T) {
	stubDeps(t)

	app, err := NewApp(context.Background(), testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)

	err = app.Run(context.Background())
	require.ErrorContains(t, err, "migrations failed")
}
