package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/avetel/outreach/internal/ai"
	"github.com/avetel/outreach/internal/api"
	"github.com/avetel/outreach/internal/config"
	"github.com/avetel/outreach/internal/mailer"
	"github.com/avetel/outreach/internal/metrics"
	"github.com/avetel/outreach/internal/resume"
	"github.com/avetel/outreach/internal/store"
	"github.com/avetel/outreach/internal/variation"
)

// App is the main application
type App struct {
	config    *config.Config
	db        *bolt.DB
	store     *store.Store
	mailer    *mailer.Mailer
	crafter   *ai.Client
	apiServer *api.Server
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	db, err := bolt.Open(cfg.Storage.Path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	st, err := store.New(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metrics.SetGlobal(m)
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	settings, err := mailer.ProviderSettings(cfg.Email.Provider)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to resolve email provider: %w", err)
	}
	if cfg.Email.Host != "" {
		settings.Host = cfg.Email.Host
	}
	if cfg.Email.Port != 0 {
		settings.Port = cfg.Email.Port
	}

	sender := mailer.New(mailer.Config{
		Settings:    settings,
		Address:     cfg.Email.Address,
		AppPassword: cfg.Email.AppPassword,
		Timeout:     cfg.Email.Timeout,
		MinInterval: cfg.Batch.RateLimitDelay,
	}, logger)

	// The fallback generator and the API server draw from separate
	// sources: rand.Rand is not safe for concurrent use, and the two
	// are hit from different request paths.
	crafter := ai.New(
		ai.Config{
			Provider:    cfg.AI.Provider,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
		},
		&http.Client{Timeout: cfg.AI.Timeout},
		variation.NewSynonymGenerator(rand.New(rand.NewSource(time.Now().UnixNano()))),
		logger,
	)

	checker := resume.NewChecker(
		cfg.Resume.Dir,
		cfg.Resume.SoftwareFile,
		cfg.Resume.DataScienceFile,
		cfg.Resume.DefaultType,
	)

	apiServer := api.NewServer(cfg, api.Deps{
		Sender:  sender,
		Crafter: crafter,
		Resumes: checker,
		Store:   st,
		Metrics: m,
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, logger)

	return &App{
		config:    cfg,
		db:        db,
		store:     st,
		mailer:    sender,
		crafter:   crafter,
		apiServer: apiServer,
		metrics:   m,
		logger:    logger,
	}, nil
}

// Run starts the API server and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting outreach",
		"api_addr", a.config.Server.ListenAddr,
		"email_provider", a.config.Email.Provider,
		"email_configured", a.config.HasEmailConfig(),
		"ai_provider", a.config.AI.Provider,
		"ai_configured", a.config.HasAIKey(),
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components. Armed scheduled sends
// are retracted: scheduling is in-memory and would not survive the
// restart anyway.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("storage close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
