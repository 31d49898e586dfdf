// Package http implements the REST API for learner progress: recording
// session status, reading records and stats, and the lesson catalog with
// per-learner lock state.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alem-hub/curriculum-progress/internal/application/command"
	"github.com/alem-hub/curriculum-progress/internal/application/query"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/curriculum-progress/internal/interface/http/handlers"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// AllowedOrigins - allowed origins for CORS. Empty disables CORS headers.
	AllowedOrigins []string

	// EnableMetrics exposes /metrics.
	EnableMetrics bool

	// RateLimitPerMinute - requests per minute per IP (0 = disabled).
	RateLimitPerMinute int

	// Version is reported by /health.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		AllowedOrigins:     []string{"*"},
		EnableMetrics:      true,
		RateLimitPerMinute: 300,
		Version:            "dev",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Authenticator resolves a bearer token into a learner id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// WriteLimiter decides whether a learner may write progress now.
type WriteLimiter interface {
	Allow(ctx context.Context, userID string) (redis.Decision, error)
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command side
	UpsertProgress *command.UpsertProgressHandler

	// Query side
	GetProgress *query.GetProgressHandler
	GetStats    *query.GetStatsHandler
	Lessons     *query.LessonsHandler

	Authenticator Authenticator

	// WriteLimiter is optional; nil disables per-learner write limits.
	WriteLimiter WriteLimiter

	HealthChecker handlers.HealthChecker

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     chi.Router
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	s.router = s.routes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// Handler returns the root handler. Tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.observe)
	r.Use(s.recoverer)
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader, "Retry-After", "X-RateLimit-Remaining"},
			MaxAge:         300,
		}))
	}
	if s.config.RateLimitPerMinute > 0 {
		r.Use(s.ipRateLimit())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Health & Metrics
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.config.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 (authenticated)
	// ─────────────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/progress", func(r chi.Router) {
			r.Get("/", s.handleGetProgress)
			r.With(s.limitWrites).Post("/", s.handleUpsertProgress)
			r.Get("/stats", s.handleGetStats)
		})

		r.Route("/lessons", func(r chi.Router) {
			r.Get("/", s.handleListLessons)
			r.Get("/{lessonID}", s.handleGetLesson)
			r.Get("/{lessonID}/access", s.handleLessonAccess)
			r.Get("/{lessonID}/sessions/{sessionNumber}", s.handleGetSession)
		})
	})

	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
