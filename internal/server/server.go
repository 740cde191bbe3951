// Package server is the composition root: it wires repositories, services,
// handlers, middleware and background jobs, and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	main → config, logger, sqlite.DB, media.Store, metrics
//	     → server.New: services → handlers → routes, sweeper
//
// Nothing below this package reads configuration or constructs its own
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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/storyline/internal/auth"
	"github.com/sakif/storyline/internal/config"
	"github.com/sakif/storyline/internal/handler"
	"github.com/sakif/storyline/internal/jobs"
	"github.com/sakif/storyline/internal/media"
	"github.com/sakif/storyline/internal/metrics"
	"github.com/sakif/storyline/internal/middleware"
	sqliteRepo "github.com/sakif/storyline/internal/repository/sqlite"
	"github.com/sakif/storyline/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router, the database handle and the story sweeper. The
// database is closed when Start returns.
type Server struct {
	router  *chi.Mux
	handler http.Handler
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	metrics *metrics.Metrics
	sweeper *jobs.Sweeper
}

// New builds every service and handler and registers the routes. The
// sweeper is created here but only started by Start.
func New(cfg *config.Config, db *sqliteRepo.DB, store media.Store, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	hour, minute, err := cfg.SweepClock()
	if err != nil {
		return nil, err
	}

	// === Services ===
	notifications := service.NewNotificationService(db, m, logger)
	authService := service.NewAuthService(db, tokens, auth.NewPasswordService(), logger)
	userService := service.NewUserService(db, db, db, store, cfg.Media.MaxBytes, logger)
	graphService := service.NewGraphService(db, db, notifications, logger)
	storyService := service.NewStoryService(db, db, store, notifications, cfg.StoryTTL, cfg.Media.MaxBytes, logger)
	postService := service.NewPostService(db, store, cfg.Media.MaxBytes, logger)
	engagementService := service.NewEngagementService(db, db, db, notifications, logger)
	feedService := service.NewFeedService(db, db, db)

	// === Handlers ===
	var github handler.GitHubAuthenticator
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: m,
		sweeper: jobs.NewSweeper(storyService, hour, minute, m, logger),
	}

	s.setupRoutes(
		tokens,
		handler.NewAuthHandler(authService, github, tokens, logger),
		handler.NewUserHandler(userService, graphService, cfg.Media.MaxBytes, logger),
		handler.NewStoryHandler(storyService, cfg.Media.MaxBytes, logger),
		handler.NewPostHandler(postService, engagementService, cfg.Media.MaxBytes, logger),
		handler.NewFeedHandler(feedService, notifications, logger),
	)

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}).Handler(s.router)

	return s, nil
}

// setupRoutes registers every route.
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP: tag the request
//  2. Logger: one line per request
//  3. Metrics: counts by chi route pattern
//  4. Recoverer: panics become 500s
//
// /auth/*, /healthz and /metrics are public; everything under /api needs a
// token (Bearer header or cookie).
func (s *Server) setupRoutes(
	tokens *auth.TokenService,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	storyHandler *handler.StoryHandler,
	postHandler *handler.PostHandler,
	feedHandler *handler.FeedHandler,
) {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Use(middleware.RecordUser)

		r.Get("/me", authHandler.HandleMe)

		r.Route("/users", func(r chi.Router) {
			r.Get("/search", userHandler.HandleSearch)
			r.Put("/me", userHandler.HandleUpdateProfile)
			r.Put("/me/avatar", userHandler.HandleUpdateAvatar)
			r.Get("/{id}", userHandler.HandleProfile)
			r.Post("/{id}/follow", userHandler.HandleFollow)
			r.Delete("/{id}/follow", userHandler.HandleUnfollow)
			r.Get("/{id}/followers", userHandler.HandleFollowers)
			r.Get("/{id}/following", userHandler.HandleFollowing)
			r.Get("/{id}/stories", storyHandler.HandleListByOwner)
			r.Get("/{id}/posts", postHandler.HandleListByOwner)
		})

		r.Route("/stories", func(r chi.Router) {
			r.Post("/", storyHandler.HandleCreate)
			r.Get("/archive", storyHandler.HandleArchive)
			r.Get("/{id}", storyHandler.HandleGet)
			r.Delete("/{id}", storyHandler.HandleDelete)
			r.Post("/{id}/views", storyHandler.HandleRecordView)
			r.Get("/{id}/views", storyHandler.HandleViewers)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Post("/", postHandler.HandleCreate)
			r.Get("/search", postHandler.HandleSearch)
			r.Get("/{id}", postHandler.HandleGet)
			r.Delete("/{id}", postHandler.HandleDelete)
			r.Post("/{id}/like", postHandler.HandleLike)
			r.Delete("/{id}/like", postHandler.HandleUnlike)
			r.Get("/{id}/comments", postHandler.HandleComments)
			r.Post("/{id}/comments", postHandler.HandleAddComment)
		})

		r.Get("/feed/stories", feedHandler.HandleStories)
		r.Get("/feed/posts", feedHandler.HandlePosts)
		r.Get("/notifications", feedHandler.HandleNotifications)
	})
}

// Handler returns the fully wrapped HTTP handler (CORS included).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sweeper is exposed so operators and tests can trigger a sweep directly.
func (s *Server) Sweeper() *jobs.Sweeper {
	return s.sweeper
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start runs the server until SIGINT/SIGTERM.
//
// SHUTDOWN ORDER:
//  1. Stop accepting connections and drain in-flight requests (30s)
//  2. Stop the sweeper, cancelling a sweep in progress
//  3. Close the database
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second, // media uploads
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.sweeper.Start()
	defer s.sweeper.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("githubLogin", s.config.GitHubEnabled()),
			slog.Bool("mediaStorage", s.config.MediaEnabled()),
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
