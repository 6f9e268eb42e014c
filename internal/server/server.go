// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and passes it to New, which creates:
//
//	sqlite.DB ──────────────┬─→ TodoService ────→ TodoHandler
//	storage.Store (local|s3)┼─→ ProfileService ─→ ProfileHandler, AvatarHandler
//	TokenService, Passwords ┴─→ AuthService ────→ AuthHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
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

	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/config"
	"github.com/sakif/todolist/internal/handler"
	"github.com/sakif/todolist/internal/middleware"
	sqliteRepo "github.com/sakif/todolist/internal/repository/sqlite"
	"github.com/sakif/todolist/internal/service"
	"github.com/sakif/todolist/internal/storage"
	"github.com/sakif/todolist/internal/view"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection (db). When the server shuts down,
// we must close it to flush pending writes and release the file lock. This
// is handled in Start() during graceful shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	blobs  storage.Store
}

// New creates a Server from cfg.
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with
// the sqlite driver package.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	if dir := filepath.Dir(cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// === CREATE BLOB STORE ===
	blobs, err := newStore(ctx, cfg.Storage)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		blobs:  blobs,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func newStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverS3:
		return storage.NewS3(ctx, cfg.S3)
	case config.DriverLocal:
		return storage.NewLocal(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Handler returns the router, for tests and for embedding the app in
// another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /                       → redirect to /todos
//	GET    /about                  → about page
//	GET    /healthz                → liveness (JSON)
//	GET    /avatars/{name}         → avatar image
//	GET    /login, /register       → forms        (OptionalAuth)
//	POST   /login, /register       → sign in / up
//	POST   /logout                 → clear session
//	GET    /auth/github/login      → GitHub OAuth (only when configured)
//	GET    /auth/github/callback
//	GET    /todos ... DELETE /todos/{id}
//	GET    /profile, PUT /profile  (RequireAuth)
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the real client IP from proxy headers
//  3. Logger: logs each request with timing info and the request ID
//  4. Recoverer: catches panics and returns 500 instead of crashing
//  5. MethodOverride: turns POST + _method=PUT/DELETE into PUT/DELETE before routing
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.MethodOverride)

	views, err := view.New()
	if err != nil {
		return fmt.Errorf("parsing views: %w", err)
	}

	// === Auth ===
	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.Auth.BcryptCost)

	var github *auth.GitHubProvider
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(
			s.config.GitHub.ClientID,
			s.config.GitHub.ClientSecret,
			s.config.GitHub.CallbackURL,
		)
	} else {
		s.logger.Info("GitHub OAuth not configured; /auth/github routes disabled")
	}

	// === Services and handlers ===
	// DEPENDENCY CHAIN:
	//   s.db (sqlite.DB) implements repository.UserRepository and TodoRepository
	//   services receive the repository interfaces
	//   handlers receive the services
	//
	// The handler never touches the database directly, and the service never
	// touches HTTP.
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	todoService := service.NewTodoService(s.db, s.logger)
	profileService := service.NewProfileService(s.db, s.blobs, passwords, s.logger)

	authHandler := handler.NewAuthHandler(authService, github, tokens, views, s.logger)
	todoHandler := handler.NewTodoHandler(todoService, views, s.logger)
	profileHandler := handler.NewProfileHandler(profileService, views, s.logger)
	avatarHandler := handler.NewAvatarHandler(s.blobs, views, s.logger)
	pageHandler := handler.NewPageHandler(views, s.logger)

	s.router.NotFound(pageHandler.HandleNotFound)

	// === Public routes ===
	s.router.Get("/healthz", handler.HandleHealth(s.db, s.logger))
	s.router.Get("/avatars/{name}", avatarHandler.HandleAvatar)
	s.router.Post("/logout", authHandler.HandleLogout)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens, s.db))

		r.Get("/about", pageHandler.HandleAbout)
		r.Get("/login", authHandler.HandleLoginForm)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/register", authHandler.HandleRegisterForm)
		r.Post("/register", authHandler.HandleRegister)
	})

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	// === Signed-in routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, s.db, s.logger))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/todos", http.StatusSeeOther)
		})

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", todoHandler.HandleIndex)
			r.Get("/create", todoHandler.HandleCreate)
			r.Post("/", todoHandler.HandleStore)
			r.Get("/{id}", todoHandler.HandleShow)
			r.Get("/{id}/edit", todoHandler.HandleEdit)
			r.Put("/{id}", todoHandler.HandleUpdate)
			r.Delete("/{id}", todoHandler.HandleDestroy)
		})

		r.Get("/profile", profileHandler.HandleShow)
		r.Put("/profile", profileHandler.HandleUpdate)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
//
// The `defer s.db.Close()` ensures step 3 happens on every return path.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.App.Port),
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
			slog.Int("port", s.config.App.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.App.Port)),
			slog.String("env", s.config.App.Env),
			slog.String("database", s.config.DB.Path),
			slog.String("storage", s.config.Storage.Driver),
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

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the database. Start does this itself on shutdown; Close
// is for servers that were built but never started (tests).
func (s *Server) Close() error {
	return s.db.Close()
}
