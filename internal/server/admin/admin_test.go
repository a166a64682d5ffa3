package admin

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/petmatch/internal/server/config"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr      error
	version    int64
	versionErr error
	ups        int
}

func (f *fakeMigrator) RunMigrations(context.Context, *sql.DB) error {
	f.ups++
	return f.upErr
}

func (f *fakeMigrator) MigrationVersion(context.Context, *sql.DB) (int64, error) {
	return f.version, f.versionErr
}

type fakeSender struct {
	users    []string
	delivery models.Delivery
}

func (f *fakeSender) SendTest(_ context.Context, userID string) models.Delivery {
	f.users = append(f.users, userID)
	return f.delivery
}

type fakeIndex struct {
	deleted []string
	err     error
}

func (f *fakeIndex) Health(context.Context) (map[string]any, error) {
	return map[string]any{"status": "healthy"}, f.err
}

func (f *fakeIndex) Metrics(context.Context) (map[string]any, error) {
	return map[string]any{"total_vectors": 42}, f.err
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func newDeps(t *testing.T) (*Dependencies, *bytes.Buffer) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	c := &config.Config{}
	c.LoadDefaults()

	var out bytes.Buffer
	return &Dependencies{
		Config:   c,
		Out:      &out,
		DB:       db,
		Migrator: &fakeMigrator{version: 7},
		Notifier: &fakeSender{delivery: models.Delivery{Delivered: true}},
		Index:    &fakeIndex{},
	}, &out
}

func run(deps *Dependencies, args ...string) error {
	root := NewRootCmd(deps)
	root.SetArgs(args)
	root.SetOut(deps.Out)
	root.SetErr(deps.Out)
	return root.ExecuteContext(context.Background())
}

func TestMigrateUp(t *testing.T) {
	deps, out := newDeps(t)
	m := deps.Migrator.(*fakeMigrator)

	require.NoError(t, run(deps, "migrate", "up"))
	assert.Equal(t, 1, m.ups)
	assert.Equal(t, "schema is at version 7\n", out.String())
	assert.Nil(t, deps.DB, "db is closed after the command")
}

func TestMigrateUp_Error(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Migrator.(*fakeMigrator).upErr = errors.New("dirty schema")

	err := run(deps, "migrate", "up")
	require.EqualError(t, err, "migrate up: dirty schema")
}

func TestMigrateVersion(t *testing.T) {
	deps, out := newDeps(t)

	require.NoError(t, run(deps, "migrate", "version"))
	assert.Equal(t, "7\n", out.String())
}

func TestNotifyTest(t *testing.T) {
	deps, out := newDeps(t)
	s := deps.Notifier.(*fakeSender)

	require.NoError(t, run(deps, "notify-test", "--user", " owner-1 "))
	assert.Equal(t, []string{"owner-1"}, s.users)
	assert.Contains(t, out.String(), "delivered")

	deps2, _ := newDeps(t)
	deps2.Notifier = &fakeSender{delivery: models.Delivery{Reason: "no_push_token"}}
	err := run(deps2, "notify-test", "--user", "owner-1")
	require.EqualError(t, err, "notification not delivered: no_push_token")
}

func TestNotifyTest_RequiresUser(t *testing.T) {
	deps, _ := newDeps(t)

	err := run(deps, "notify-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"user"`)
	assert.Empty(t, deps.Notifier.(*fakeSender).users)
}

func TestSimilarityCommands(t *testing.T) {
	deps, out := newDeps(t)
	require.NoError(t, run(deps, "similarity", "health"))
	assert.JSONEq(t, `{"status":"healthy"}`, out.String())

	deps, out = newDeps(t)
	require.NoError(t, run(deps, "similarity", "metrics"))
	assert.JSONEq(t, `{"total_vectors":42}`, out.String())

	deps, out = newDeps(t)
	require.NoError(t, run(deps, "similarity", "forget", "--vector-id", "vec-9"))
	assert.Equal(t, []string{"vec-9"}, deps.Index.(*fakeIndex).deleted)
	assert.Equal(t, "vector vec-9 removed\n", out.String())

	deps, _ = newDeps(t)
	deps.Index.(*fakeIndex).err = errors.New("unavailable")
	require.EqualError(t, run(deps, "similarity", "health"), "unavailable")
}

func TestInit_BuildsMissingDependencies(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	orig := openDB
	var gotDSN string
	openDB = func(dsn string) (*sql.DB, error) { gotDSN = dsn; return db, nil }
	t.Cleanup(func() { openDB = orig })

	c := &config.Config{}
	c.LoadDefaults()
	deps := &Dependencies{Config: c, Out: &bytes.Buffer{}}

	root := NewRootCmd(deps)
	require.NoError(t, root.ParseFlags([]string{"--database-url", "postgres://x/y"}))
	require.NoError(t, deps.init(context.Background()))

	assert.Equal(t, "postgres://x/y", gotDSN)
	assert.NotNil(t, deps.Migrator)
	assert.NotNil(t, deps.Notifier)
	assert.NotNil(t, deps.Index)
}

func TestPrintJSON_CompactWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]any{"a": 1}))
	assert.Equal(t, "{\"a\":1}\n", buf.String())
}
