// Package http exposes the gradebook as a JSON REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/calculus-oom/gradebook/internal/application/command"
	"github.com/calculus-oom/gradebook/internal/application/query"
	"github.com/calculus-oom/gradebook/internal/interface/http/health"
	"github.com/calculus-oom/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// RequestTimeout bounds the handling of one request.
	RequestTimeout time.Duration

	// AllowedOrigins - allowed origins for CORS.
	AllowedOrigins []string

	// MaxUploadBytes caps a multipart asset upload, form overhead included.
	MaxUploadBytes int64

	// RateLimitPerMinute - requests per minute per IP (0 = disabled).
	RateLimitPerMinute int
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		RequestTimeout:     30 * time.Second,
		AllowedOrigins:     []string{"*"},
		MaxUploadBytes:     command.MaxAssetSize + 1<<20,
		RateLimitPerMinute: 0,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains the handlers behind the routes.
type Dependencies struct {
	// Commands (write side)
	CreateStudent    *command.CreateStudentHandler
	UpdateStudent    *command.UpdateStudentHandler
	DeleteStudent    *command.DeleteStudentHandler
	SetStudentStatus *command.SetStudentStatusHandler
	Scores           *command.ScoreHandler
	Exams            *command.ExamHandler
	UploadAsset      *command.UploadAssetHandler
	ReplaceAsset     *command.ReplaceAssetHandler
	DeleteAsset      *command.DeleteAssetHandler
	SetWeights       *command.SetWeightsHandler
	FinalizeTerm     *command.FinalizeTermHandler

	// Queries (read side)
	Records    *query.RecordsHandler
	Statistics *query.SlotStatisticsHandler

	Logger *logger.Logger
	Health health.Checker
}

// NewDependencies builds every command handler from one set of command deps.
func NewDependencies(deps command.Deps, records *query.RecordsHandler, stats *query.SlotStatisticsHandler) Dependencies {
	return Dependencies{
		CreateStudent:    command.NewCreateStudentHandler(deps),
		UpdateStudent:    command.NewUpdateStudentHandler(deps),
		DeleteStudent:    command.NewDeleteStudentHandler(deps),
		SetStudentStatus: command.NewSetStudentStatusHandler(deps),
		Scores:           command.NewScoreHandler(deps),
		Exams:            command.NewExamHandler(deps),
		UploadAsset:      command.NewUploadAssetHandler(deps),
		ReplaceAsset:     command.NewReplaceAssetHandler(deps),
		DeleteAsset:      command.NewDeleteAssetHandler(deps),
		SetWeights:       command.NewSetWeightsHandler(deps),
		FinalizeTerm:     command.NewFinalizeTermHandler(deps),
		Records:          records,
		Statistics:       stats,
		Logger:           deps.Logger,
	}
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

	rateLimiter *rateLimiter

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
	if s.deps.Health == nil {
		s.deps.Health = health.NewComposite("")
	}
	if config.RateLimitPerMinute > 0 {
		s.rateLimiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

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

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Content-Disposition"},
		MaxAge:         300,
	}))
	if s.rateLimiter != nil {
		r.Use(s.rateLimitMiddleware)
	}
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusNotFound, codeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	// Health & status
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/students", func(r chi.Router) {
			r.Post("/", s.handleCreateStudent)
			r.Get("/", s.handleListStudents)
			r.Get("/{id}", s.handleGetStudent)
			r.Patch("/{id}", s.handleUpdateStudent)
			r.Delete("/{id}", s.handleDeleteStudent)
			r.Put("/{id}/status", s.handleSetStudentStatus)
		})

		r.Route("/scores", func(r chi.Router) {
			r.Post("/", s.handleRecordScore)
			r.Get("/", s.handleListScores)
			r.Get("/{id}", s.handleGetScore)
			r.Patch("/{id}", s.handleUpdateScore)
			r.Delete("/{id}", s.handleDeleteScore)
		})

		r.Route("/exams", func(r chi.Router) {
			r.Post("/", s.handleCreateExam)
			r.Get("/", s.handleListExams)
			r.Get("/{id}", s.handleGetExam)
			r.Patch("/{id}", s.handleUpdateExam)
			r.Delete("/{id}", s.handleDeleteExam)
			r.Put("/{id}/state", s.handleSetExamState)
			r.Post("/{id}/assets", s.handleUploadAsset)
		})

		r.Route("/assets/{bundleID}", func(r chi.Router) {
			r.Get("/", s.handleGetAsset)
			r.Delete("/", s.handleDeleteAsset)
			r.Get("/{kind}", s.handleDownloadAsset)
			r.Put("/{kind}", s.handleReplaceAsset)
		})

		r.Route("/terms/{term}", func(r chi.Router) {
			r.Put("/weights", s.handleSetWeights)
			r.Post("/finalize", s.handleFinalizeTerm)
			r.Get("/statistics/{slot}", s.handleSlotStatistics)
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
		return errors.New("server already running")
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

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
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
