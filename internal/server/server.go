// Package server is the composition root: it opens the database, runs the
// account bootstrap, wires services and handlers, and owns the HTTP
// server lifecycle.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                     → database ping
//	GET  /metrics                     → Prometheus exposition
//	POST /api/register                → public
//	POST /api/login                   → public
//	GET  /api/users                   → owner
//	GET  /api/developers              → owner
//	GET  /api/ideas                   → any role, scoped
//	POST /api/ideas                   → customer
//	GET  /api/ideas/{id}              → any role, scoped
//	PUT  /api/ideas/{id}              → owner, developer
//	POST /api/ideas/{id}/updates      → any role, scoped
//	GET  /api/stats                   → any role, scoped
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/idea-tracker/internal/auth"
	"github.com/sakif/idea-tracker/internal/bootstrap"
	"github.com/sakif/idea-tracker/internal/config"
	"github.com/sakif/idea-tracker/internal/handler"
	"github.com/sakif/idea-tracker/internal/middleware"
	"github.com/sakif/idea-tracker/internal/mirror"
	"github.com/sakif/idea-tracker/internal/policy"
	sqliteRepo "github.com/sakif/idea-tracker/internal/repository/sqlite"
	"github.com/sakif/idea-tracker/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database handle; Start closes it on shutdown and
// Close does so for callers that never Start (tests).
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *prometheus.Registry
}

// New opens the database, seeds accounts and builds the router.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordServiceWithCost(s.config.BcryptCost)

	seed, err := bootstrap.LoadSeedFile(s.config.SeedFile)
	if err != nil {
		return err
	}
	if _, err := bootstrap.New(s.db, passwords, s.logger).Run(context.Background(), seed, s.config.SideFileDir); err != nil {
		return fmt.Errorf("bootstrapping accounts: %w", err)
	}

	// A nil *mirror.Writer must not end up inside the interface.
	var accountMirror service.Mirror
	if s.config.SideFileDir != "" {
		accountMirror = mirror.New(s.config.SideFileDir, passwords, s.logger)
	}

	authService := service.NewAuthService(s.db, tokens, passwords, accountMirror, s.logger)
	ideaService := service.NewIdeaService(s.db, s.db, s.db, s.config.StrictIdeaVisibility, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	ideaHandler := handler.NewIdeaHandler(ideaService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(s.registry)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Handler)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.With(auth.RequireAction(policy.ActionListUsers)).Get("/users", authHandler.HandleListUsers)
			r.With(auth.RequireAction(policy.ActionListDevelopers)).Get("/developers", authHandler.HandleListDevelopers)

			r.Get("/ideas", ideaHandler.HandleList)
			r.With(auth.RequireAction(policy.ActionCreateIdea)).Post("/ideas", ideaHandler.HandleCreate)
			r.Get("/ideas/{id}", ideaHandler.HandleGet)
			r.Put("/ideas/{id}", ideaHandler.HandleUpdate)
			r.Post("/ideas/{id}/updates", ideaHandler.HandleAddUpdate)

			r.Get("/stats", ideaHandler.HandleStats)
		})
	})

	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Only needed when Start was never called.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves HTTP until SIGINT or SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DBPath),
			slog.Bool("strict_visibility", s.config.StrictIdeaVisibility),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
