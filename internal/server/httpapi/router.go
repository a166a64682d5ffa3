// Package httpapi exposes the REST API over chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/logging"
	"github.com/dmitrijs2005/petmatch/internal/server/models"
	"github.com/dmitrijs2005/petmatch/internal/server/services"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// The handlers depend on these narrow views of the services so they can be
// tested with fakes.

type SightingIntake interface {
	HandleNewSighting(ctx context.Context, reporterID string, in models.NewSighting, image []byte) (*models.SightingIntake, error)
	Rematch(ctx context.Context, callerID, sightingID string) (*models.SightingIntake, error)
}

type SightingReader interface {
	Get(ctx context.Context, id string) (*models.Sighting, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Sighting, models.Page, error)
	UpdateStatus(ctx context.Context, callerID, id, status string) (*models.Sighting, error)
	Update(ctx context.Context, callerID, id string, upd models.SightingUpdate) (*models.Sighting, error)
	Delete(ctx context.Context, callerID, id string) error
}

type LostReports interface {
	Create(ctx context.Context, ownerID string, in models.NewLostReport, image []byte) (*models.LostReportIntake, error)
	Get(ctx context.Context, id string) (*models.LostReport, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.LostReport, models.Page, error)
	UpdateStatus(ctx context.Context, callerID, id, status string) (*models.LostReport, error)
}

type Matches interface {
	Get(ctx context.Context, callerID, id string) (*models.MatchDetails, error)
	ListMine(ctx context.Context, callerID, status string, limit, offset int) ([]*models.MatchDetails, models.Page, error)
	Update(ctx context.Context, callerID, id string, upd models.MatchUpdate) (*models.MatchDetails, error)
	UpdateStatus(ctx context.Context, callerID, id, status string) (*models.MatchDetails, error)
	Delete(ctx context.Context, callerID, id string) error
}

type Users interface {
	Ensure(ctx context.Context, id services.Identity) (*models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error)
	SetPushToken(ctx context.Context, userID, token string) error
	ClearPushToken(ctx context.Context, userID string) error
}

type Options struct {
	Logger         logging.Logger
	JWTSecret      []byte
	CORSOrigins    []string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	// Sentry enables the sentry middleware; sentry.Init must have run.
	Sentry bool

	Intake      SightingIntake
	Sightings   SightingReader
	LostReports LostReports
	Matches     Matches
	Users       Users
}

type api struct {
	log            logging.Logger
	maxUploadBytes int64

	intake      SightingIntake
	sightings   SightingReader
	lostReports LostReports
	matches     Matches
	users       Users
}

func NewRouter(opts Options) http.Handler {
	a := &api{
		log:            opts.Logger.With("module", "http"),
		maxUploadBytes: opts.MaxUploadBytes,
		intake:         opts.Intake,
		sightings:      opts.Sightings,
		lostReports:    opts.LostReports,
		matches:        opts.Matches,
		users:          opts.Users,
	}
	if a.maxUploadBytes <= 0 {
		a.maxUploadBytes = 10 << 20
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(a.accessLog)
	r.Use(chimw.Recoverer)
	if opts.Sentry {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusNotFound, "route not found: "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(a.authenticate(opts.JWTSecret))

		r.Route("/sighting-reports", func(r chi.Router) {
			r.Post("/", a.createSighting)
			r.Get("/", a.listSightings)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(requireUUID("id"))
				r.Get("/", a.getSighting)
				r.Put("/", a.updateSighting)
				r.Delete("/", a.deleteSighting)
				r.Patch("/status", a.updateSightingStatus)
				r.Post("/rematch", a.rematchSighting)
			})
		})

		r.Route("/lost-reports", func(r chi.Router) {
			r.Post("/", a.createLostReport)
			r.Get("/", a.listLostReports)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(requireUUID("id"))
				r.Get("/", a.getLostReport)
				r.Patch("/status", a.updateLostReportStatus)
			})
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", a.listMatches)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(requireUUID("id"))
				r.Get("/", a.getMatch)
				r.Put("/", a.updateMatch)
				r.Patch("/status", a.updateMatchStatus)
				r.Delete("/", a.deleteMatch)
			})
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", a.getProfile)
			r.Put("/", a.updateProfile)
			r.Put("/push-token", a.setPushToken)
			r.Delete("/push-token", a.clearPushToken)
		})
	})

	return cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{chimw.RequestIDHeader},
	}).Handler(r)
}
