// Package api exposes the JSON HTTP surface that drives the outreach
// pipeline: recipients, variations, review sessions and dispatch.
package api

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avetel/outreach/internal/ai"
	"github.com/avetel/outreach/internal/config"
	"github.com/avetel/outreach/internal/dispatch"
	"github.com/avetel/outreach/internal/mailer"
	"github.com/avetel/outreach/internal/metrics"
	"github.com/avetel/outreach/internal/personalize"
	"github.com/avetel/outreach/internal/recipient"
	"github.com/avetel/outreach/internal/resume"
	"github.com/avetel/outreach/internal/review"
	"github.com/avetel/outreach/internal/store"
	"github.com/avetel/outreach/internal/variation"
)

// Sender submits one outgoing message.
type Sender interface {
	Send(ctx context.Context, msg *mailer.Message) error
}

// Crafter produces message variations for a base draft.
type Crafter interface {
	CraftVariations(ctx context.Context, baseMessage, jobTitle, companyName string, count int) (*ai.Result, error)
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Sender  Sender
	Crafter Crafter
	Resumes *resume.Checker
	Store   *store.Store
	Metrics *metrics.Metrics
	Rand    *rand.Rand
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	cfg        *config.Config
	logger     *slog.Logger
	startTime  time.Time

	sender  Sender
	crafter Crafter
	resumes *resume.Checker
	store   *store.Store
	metrics *metrics.Metrics

	rngMu sync.Mutex
	rng   *rand.Rand

	variations   *variation.Store
	recipients   *recipient.Batch
	personalizer *personalize.Personalizer
	subjects     *variation.SubjectGenerator

	// One review session at a time; replaced when a new review starts.
	sessionMu sync.Mutex
	session   *review.Session
	scheduler *dispatch.Scheduler
	run       *reviewRun
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		logger:    logger.With("component", "api"),
		startTime: time.Now(),

		sender:  deps.Sender,
		crafter: deps.Crafter,
		resumes: deps.Resumes,
		store:   deps.Store,
		metrics: deps.Metrics,

		rng:        rng,
		variations: variation.NewStore(),
		recipients: recipient.NewBatch(cfg.Batch.MaxRecipients),
		personalizer: &personalize.Personalizer{
			SenderName:   cfg.Sender.Name,
			Signature:    cfg.Sender.Signature,
			PortfolioURL: cfg.Sender.PortfolioURL,
		},
		subjects: variation.NewSubjectGenerator(rng),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.HTTPMiddleware)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path,
			promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// API v1 routes (auth required)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/config", s.handleConfig)
		r.Get("/resumes/status", s.handleResumeStatus)
		r.Post("/role/detect", s.handleDetectRole)

		r.Route("/variations", func(r chi.Router) {
			r.Get("/", s.handleListVariations)
			r.Delete("/", s.handleResetVariations)
			r.Post("/craft", s.handleCraftVariations)
			r.Post("/manual", s.handleAddManualVariation)
			r.Put("/manual/{index}", s.handleUpdateManualVariation)
			r.Delete("/manual/{index}", s.handleDeleteManualVariation)
			r.Delete("/generated/{index}", s.handleDeleteGeneratedVariation)
		})

		r.Route("/recipients", func(r chi.Router) {
			r.Get("/", s.handleListRecipients)
			r.Post("/", s.handleAddRecipient)
			r.Post("/csv", s.handleRecipientsCSV)
			r.Delete("/", s.handleResetRecipients)
			r.Delete("/{email}", s.handleRemoveRecipient)
		})

		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", s.handleListDrafts)
			r.Post("/", s.handleSaveDraft)
			r.Get("/{name}", s.handleGetDraft)
			r.Delete("/{name}", s.handleDeleteDraft)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleSaveTemplate)
			r.Get("/{name}", s.handleGetTemplate)
			r.Delete("/{name}", s.handleDeleteTemplate)
		})

		r.Route("/review", func(r chi.Router) {
			r.Post("/start", s.handleReviewStart)
			r.Get("/current", s.handleReviewCurrent)
			r.Post("/send", s.handleReviewSend)
			r.Post("/skip", s.handleReviewSkip)
			r.Post("/schedule", s.handleReviewSchedule)
			r.Post("/stage", s.handleReviewStage)
			r.Post("/stop", s.handleReviewStop)
			r.Get("/summary", s.handleReviewSummary)
			r.Get("/results", s.handleScheduleResults)
		})

		r.Post("/send", s.handleSendSingle)
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.Info("starting HTTP API server", "addr", s.cfg.Server.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	s.sessionMu.Lock()
	if s.scheduler != nil {
		if n := s.scheduler.Cancel(); n > 0 {
			s.logger.Warn("cancelled scheduled sends on shutdown", "count", n)
		}
	}
	s.sessionMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
