// Package server wires the petmatch services together and runs the HTTP API
// and the gRPC health endpoint until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/config"
	"github.com/dmitrijs2005/petmatch/internal/server/httpapi"
	"github.com/dmitrijs2005/petmatch/internal/server/push"
	"github.com/dmitrijs2005/petmatch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/petmatch/internal/server/services"
	"github.com/dmitrijs2005/petmatch/internal/server/similarity"
	"github.com/dmitrijs2005/petmatch/internal/server/storage"
	"github.com/getsentry/sentry-go"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/petmatch/internal/server/grpc"
)

// Seams for tests.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newObjectStore = func(ctx context.Context, c *config.Config) (services.ObjectStore, error) {
		return storage.NewS3Store(ctx, c)
	}
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	similarity  *similarity.Client
	handler     http.Handler
	sentry      bool
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	sentryOn := false
	if c.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			Environment:      c.SentryEnvironment,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			logger.Error(ctx, "sentry init failed", "error", err)
		} else {
			sentryOn = true
		}
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository manager error: %w", err)
	}

	store, err := newObjectStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	index := similarity.New(c.SimilarityURL, c.SimilarityTimeout, logger)
	notifier := services.NewNotificationService(db, rm, push.NewExpoGateway(c.ExpoPushURL, c.ExpoAccessToken), logger)

	handler := httpapi.NewRouter(httpapi.Options{
		Logger:         logger,
		JWTSecret:      []byte(c.JWTSecret),
		CORSOrigins:    c.CORSOrigins,
		MaxUploadBytes: c.MaxUploadBytes,
		RequestTimeout: c.RequestTimeout,
		Sentry:         sentryOn,
		Intake:         services.NewMatchingService(db, rm, store, index, notifier, logger),
		Sightings:      services.NewSightingService(db, rm, store, index, logger),
		LostReports:    services.NewLostReportService(db, rm, store, index, logger),
		Matches:        services.NewMatchService(db, rm, notifier, logger),
		Users:          services.NewUserService(db, rm, logger),
	})

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: rm,
		similarity:  index,
		handler:     handler,
		sentry:      sentryOn,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) healthChecks() []gs.Check {
	return []gs.Check{
		{Name: "database", Run: app.db.PingContext},
		{Name: "similarity", Run: func(ctx context.Context) error {
			_, err := app.similarity.Health(ctx)
			return err
		}},
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.GRPCHealthAddr, app.logger, gs.DefaultCheckInterval, app.healthChecks()...)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run applies pending migrations and serves until a signal arrives or ctx
// is cancelled.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	defer app.close()

	app.logger.Info(ctx, "Starting app...")

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	return nil
}

func (app *App) close() {
	if app.sentry {
		sentry.Flush(2 * time.Second)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
}
