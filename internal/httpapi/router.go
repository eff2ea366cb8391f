// Package httpapi wires the HTTP surface of the ledger service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/govfin/ledger/internal/config"
	"github.com/govfin/ledger/internal/service/account"
	"github.com/govfin/ledger/internal/service/category"
	"github.com/govfin/ledger/internal/service/entry"
)

// Server wires handlers and middleware using Chi.
// It composes read (repo) and write (writer) dependencies through services.
type Server struct {
	accountSvc  account.Service
	categorySvc category.Service
	entrySvc    entry.Service
	accReader   account.Repo
	entryReader entry.Repo
	cfg         config.Config
	log         *slog.Logger
	rt          *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by basic request/response logging and panic recovery.
func New(arepo account.Repo, awriter account.Writer, crepo category.Repo, cwriter category.Writer, erepo entry.Repo, ewriter entry.Writer, cfg config.Config, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		accountSvc:  account.New(arepo, awriter),
		categorySvc: category.New(crepo, cwriter),
		entrySvc:    entry.New(erepo, ewriter, cfg.Currency),
		accReader:   arepo,
		entryReader: erepo,
		cfg:         cfg,
		log:         logger,
		rt:          r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	auth := s.authenticate()

	// Personal ledger (v1): the resolved account is injected by middleware.
	s.rt.Route("/v1", func(r chi.Router) {
		r.Use(auth)

		r.Group(func(r chi.Router) {
			r.Use(s.withAccount())

			r.Get("/categories", s.listCategories)
			r.Post("/categories", s.postCategory)
			r.Patch("/categories/{id}", s.updateCategory)
			r.Delete("/categories/{id}", s.deleteCategory)

			r.Post("/entries", s.postEntry)
			r.Get("/entries", s.listEntries)
			r.Get("/entries/deferred", s.listDeferred)
			r.Get("/entries/{id}", s.getEntry)
			r.Patch("/entries/{id}", s.updateEntry)
			r.Delete("/entries/{id}", s.deleteEntry)
			r.Post("/entries/{id}/payall", s.payAllEntry)

			r.Get("/totals", s.getTotals)
			r.Get("/totals/rollups", s.getRollups)
			r.Get("/activity", s.getActivity)
		})

		r.Get("/dictionary/categories", s.getCategoriesDictionary)

		// Administration: cross-account registry, statements and exports.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin())

			r.Get("/accounts", s.adminListAccounts)
			r.Post("/accounts", s.adminPostAccount)
			r.Get("/accounts/{id}", s.adminGetAccount)
			r.Patch("/accounts/{id}", s.adminUpdateAccount)
			r.Delete("/accounts/{id}", s.adminDeleteAccount)
			r.Get("/accounts/{id}/ledger", s.adminAccountLedger)
			r.Get("/accounts/{id}/export.csv", s.adminAccountExport)

			r.Get("/entries", s.adminSearchEntries)
			r.Get("/entries/export.csv", s.adminSearchExport)
		})
	})

	// Health and metrics (unversioned, unauthenticated)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
