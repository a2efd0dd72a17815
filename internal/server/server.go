// Package server is the composition root: it opens the store, builds the
// services and handlers, mounts the routes and runs the HTTP server.
//
// main.go only loads config and a logger and hands them to New, so the
// whole router can be exercised from tests through Handler().
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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onemployment/api/internal/auth"
	"github.com/onemployment/api/internal/config"
	"github.com/onemployment/api/internal/handler"
	"github.com/onemployment/api/internal/middleware"
	"github.com/onemployment/api/internal/repository"
	mongoRepo "github.com/onemployment/api/internal/repository/mongo"
	sqliteRepo "github.com/onemployment/api/internal/repository/sqlite"
	"github.com/onemployment/api/internal/service"
	"github.com/onemployment/api/internal/storage"
)

const (
	shutdownTimeout = 30 * time.Second
	connectTimeout  = 10 * time.Second
)

// Server owns the store connection and closes it on shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	store  repository.Store
}

// New opens the store selected by cfg.StoreDriver and wires every route.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	var github handler.GitHubProvider
	if cfg.GitHubEnabled() {
		callback := cfg.GitHubCallbackURL
		if callback == "" {
			callback = fmt.Sprintf("http://localhost:%d/api/auth/github/callback", cfg.Port)
		}
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, callback)
	}

	s, err := newServer(cfg, store, github, prometheus.NewRegistry(), logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		db, err := mongoRepo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		return db, nil
	default:
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return db, nil
	}
}

// newServer wires the router around an already opened store. github may
// be nil, in which case the GitHub sign-in routes are not mounted.
func newServer(cfg *config.Config, store repository.Store, github handler.GitHubProvider, reg *prometheus.Registry, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	avatars, err := storage.NewLocalAvatarStore(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating avatar store: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.BcryptCost, 0)

	accounts := service.NewAuthService(store, tokens, passwords, avatars, cfg.UploadMaxBytes, logger)
	repos := service.NewRepoService(store, logger)
	follows := service.NewFollowService(store, logger)

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		store:  store,
	}

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.NewMetrics(reg).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.ClientURLList(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	authHandler := handler.NewAuthHandler(accounts, cfg.UploadMaxBytes, logger)
	repoHandler := handler.NewRepoHandler(repos, logger)
	followHandler := handler.NewFollowHandler(follows, logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)

			if github != nil {
				gh := handler.NewGitHubHandler(github, accounts, cfg.PrimaryClientURL(), logger)
				r.Get("/github/login", gh.HandleLogin)
				r.Get("/github/callback", gh.HandleCallback)
			}

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", authHandler.HandleMe)
				r.Patch("/me", authHandler.HandleUpdateMe)
				r.Post("/me/avatar", authHandler.HandleUploadAvatar)
				r.Patch("/password", authHandler.HandleChangePassword)
			})
		})

		r.Route("/repos", func(r chi.Router) {
			r.Get("/all", repoHandler.HandleListPublic)
			r.Get("/user/{username}", repoHandler.HandleProfile)

			r.Group(func(r chi.Router) {
				r.Use(optionalAuth)
				r.Get("/{id}", repoHandler.HandleGet)
				r.Get("/{id}/commits/{commitId}", repoHandler.HandleGetCommit)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", repoHandler.HandleCreate)
				r.Get("/", repoHandler.HandleListOwn)
				r.Patch("/{id}", repoHandler.HandlePatch)
				r.Post("/{id}/commits", repoHandler.HandleAddCommit)
				r.Patch("/{id}/commits/{commitId}", repoHandler.HandleEditCommit)
				r.Post("/{id}/commits/{commitId}/comments", repoHandler.HandleAddComment)
			})
		})

		r.Route("/users/{username}", func(r chi.Router) {
			r.Get("/followers", followHandler.HandleFollowers)
			r.Get("/following", followHandler.HandleFollowing)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/follow", followHandler.HandleFollow)
				r.Delete("/follow", followHandler.HandleUnfollow)
			})
		})
	})

	prefix := "/" + strings.Trim(cfg.UploadURLPrefix, "/")
	r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(avatars.Dir()))))

	r.Get("/healthz", handler.NewHealthHandler(store, logger).HandleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if cfg.StaticDir != "" {
		r.Handle("/*", handler.SPAHandler(cfg.StaticDir))
	}

	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for
// up to 30s before closing the store.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("env", s.cfg.Env),
			slog.String("store", s.cfg.StoreDriver),
			slog.Bool("github", s.cfg.GitHubEnabled()),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
