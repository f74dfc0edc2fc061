// Package server wires every layer together and owns the HTTP lifecycle.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  → sqlite.DB ──────────────┬─→ UserService ──────┐
//	  → session.Store (sqlite   │   CodespaceService ─┼─→ graph.Resolver → /api/v1/graphql
//	    or Redis) → Manager ────┴───────────────────────┘
//	                              GitHubProvider → AuthHandler → /auth/github/*
//
// This is the composition root: nothing below it constructs its own
// dependencies.
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

	"github.com/sakif/codespaces/internal/auth"
	"github.com/sakif/codespaces/internal/config"
	"github.com/sakif/codespaces/internal/graph"
	"github.com/sakif/codespaces/internal/handler"
	"github.com/sakif/codespaces/internal/middleware"
	sqliteRepo "github.com/sakif/codespaces/internal/repository/sqlite"
	"github.com/sakif/codespaces/internal/service"
	"github.com/sakif/codespaces/internal/session"
)

// GraphQLPath is where the API is mounted.
const GraphQLPath = "/api/v1/graphql"

const shutdownTimeout = 30 * time.Second

// Server holds the router and every resource that must be closed on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *session.RedisStore // nil when sessions live in SQLite
}

// New opens the database and session store and builds the router.
// Anything opened here is closed again if a later step fails.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// sessionStore picks Redis when configured, otherwise the sessions table.
func (s *Server) sessionStore() (session.Store, error) {
	if s.config.RedisURL == "" {
		return s.db.Sessions(), nil
	}

	store, err := session.NewRedisStore(s.config.RedisURL)
	if err != nil {
		return nil, err
	}
	s.redis = store
	s.logger.Info("using Redis session store")
	return store, nil
}

// setupRoutes builds the dependency graph and mounts it.
//
// ROUTES:
//
//	POST /api/v1/graphql        → GraphQL API
//	GET  /api/v1/graphql        → GraphQL playground page
//	GET  /images/default-avatar.png
//	GET  /health                → liveness + dependency pings
//	GET  /auth/github/login     → GitHub OAuth (only when configured)
//	GET  /auth/github/callback
//
// Middleware order: request id first so every later log line carries it,
// CORS before routing so preflights never reach a route, session resolution
// last so handlers see the user.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.SessionSecret)
	if err != nil {
		return err
	}

	store, err := s.sessionStore()
	if err != nil {
		return err
	}

	sessions := session.NewManager(tokens, store, session.Options{
		CookieName: s.config.CookieName,
		TTL:        s.config.SessionTTL,
		Secure:     s.config.CookieSecure,
		HTTPOnly:   s.config.CookieHTTPOnly,
	}, s.logger)

	users := s.db.Users()
	userService := service.NewUserService(users, auth.NewPasswordService(), s.config.DefaultAvatarURL, s.logger)
	codespaceService := service.NewCodespaceService(s.db.Codespaces(), users, s.logger)

	gqlHandler, err := graph.NewHandler(graph.NewResolver(userService, codespaceService, sessions, s.logger))
	if err != nil {
		return err
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.CORS(s.config.CORSAllowedOrigins))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(sessions.Middleware)

	checks := map[string]handler.Pinger{"database": s.db}
	if s.redis != nil {
		checks["redis"] = s.redis
	}
	s.router.Get("/health", handler.NewHealthHandler(checks, s.logger).HandleHealth)

	playground, err := handler.NewPlaygroundHandler(GraphQLPath, s.logger)
	if err != nil {
		return fmt.Errorf("creating playground handler: %w", err)
	}

	s.router.Method(http.MethodPost, GraphQLPath, gqlHandler)
	s.router.Get(GraphQLPath, playground.HandlePlayground)
	s.router.Get(handler.DefaultAvatarPath, playground.HandleDefaultAvatar)

	if s.config.GitHubEnabled() {
		github := auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
		authHandler := handler.NewAuthHandler(github, userService, sessions, "/", s.logger)
		s.router.Route("/auth/github", func(r chi.Router) {
			r.Get("/login", authHandler.HandleGitHubLogin)
			r.Get("/callback", authHandler.HandleGitHubCallback)
		})
	} else {
		s.logger.Info("GitHub login disabled: GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set")
	}

	return nil
}

// close releases the database and the Redis client. Errors are logged.
func (s *Server) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing Redis", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the stores.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
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
			slog.Int("port", s.config.Port),
			slog.String("graphql", fmt.Sprintf("http://localhost:%d%s", s.config.Port, GraphQLPath)),
			slog.String("database", s.config.DBPath),
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
