// Package server provides the HTTP server and routing for BackFinance.
package server

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/lmoraes/backfinance/internal/assetcache"
	"github.com/lmoraes/backfinance/internal/config"
	"github.com/lmoraes/backfinance/internal/database"
	"github.com/lmoraes/backfinance/internal/modules/accounts"
	accountshandlers "github.com/lmoraes/backfinance/internal/modules/accounts/handlers"
	"github.com/lmoraes/backfinance/internal/modules/backup"
	backuphandlers "github.com/lmoraes/backfinance/internal/modules/backup/handlers"
)

// Config holds server configuration
type Config struct {
	Log             zerolog.Logger
	AccountsDB      *database.DB
	CacheDB         *database.DB
	Config          *config.Config
	Port            int
	DevMode         bool
	AccountsService *accounts.Service
	BackupService   *backup.Service
	Sessions        *accounts.SessionManager
	AssetCache      *assetcache.Cache
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	accountsDB     *database.DB
	cacheDB        *database.DB
	cfg            *config.Config
	assetCache     *assetcache.Cache
	systemHandlers *SystemHandlers

	accountsHandlers *accountshandlers.Handler
	backupHandlers   *backuphandlers.Handler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	// Register common MIME types to ensure correct Content-Type headers
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")
	_ = mime.AddExtensionType(".json", "application/json")
	_ = mime.AddExtensionType(".webmanifest", "application/manifest+json")

	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		accountsDB: cfg.AccountsDB,
		cacheDB:    cfg.CacheDB,
		cfg:        cfg.Config,
		assetCache: cfg.AssetCache,
		accountsHandlers: accountshandlers.NewHandler(
			cfg.AccountsService, cfg.Sessions, cfg.Log),
		backupHandlers: backuphandlers.NewHandler(
			cfg.BackupService, cfg.AccountsService, cfg.Sessions, cfg.Log),
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.AccountsDB, cfg.CacheDB),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check (before shell routing)
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		s.accountsHandlers.RegisterRoutes(r)
		s.backupHandlers.RegisterRoutes(r)

		r.Route("/system", func(r chi.Router) {
			r.Get("/health", s.systemHandlers.HandleSystemHealth)
		})
	})

	// Everything else is the app shell, served cache-first with the offline
	// fallback to the cached root document.
	s.router.NotFound(s.assetCache.ServeHTTP)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.accountsDB.QuickCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request")
	})
}

// Router returns the chi router (used by tests)
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
