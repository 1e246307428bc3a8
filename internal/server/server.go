// Package server provides the HTTP server and routing for the studio.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/llamaforge/internal/config"
	"github.com/aristath/llamaforge/internal/database"
	"github.com/aristath/llamaforge/internal/di"
	curriculumhandlers "github.com/aristath/llamaforge/internal/modules/curriculum/handlers"
	exporthandlers "github.com/aristath/llamaforge/internal/modules/export/handlers"
	settingshandlers "github.com/aristath/llamaforge/internal/modules/settings/handlers"
	testbenchhandlers "github.com/aristath/llamaforge/internal/modules/testbench/handlers"
	traininghandlers "github.com/aristath/llamaforge/internal/orchestrator/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
	Jobs      *di.JobInstances
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	container := cfg.Container

	jobs := cfg.Jobs
	if jobs == nil {
		jobs = &di.JobInstances{}
	}
	var runtime RuntimeChecker
	if jobs.RuntimeProbe != nil {
		runtime = jobs.RuntimeProbe
	}

	systemHandlers := NewSystemHandlers(
		cfg.Log,
		map[string]*database.DB{database.StudioName: container.StudioDB},
		container.Orchestrator,
		runtime,
		jobs.ByName(),
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      container,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	// No write timeout: event streams stay open for the life of the client
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router returns the root handler
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.container.MetricsRegistry, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		// Event streams are long lived and sit outside the timeout group
		stream := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/stream", stream.ServeHTTP)
		ws := NewEventsWSHandler(s.container.EventBus, s.log)
		r.Get("/events/ws", ws.ServeHTTP)

		// Video synthesis polls a long-running operation
		curriculumHandler := curriculumhandlers.NewHandler(s.container.CurriculumService, s.log)
		curriculumHandler.RegisterMediaRoutes(r.With(middleware.Timeout(10 * time.Minute)))

		r.Group(func(r chi.Router) {
			// Provider calls can take a while
			r.Use(middleware.Timeout(90 * time.Second))
			if !devMode {
				r.Use(middleware.Compress(5))
			}

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
				r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
			})
			r.Get("/runtime/status", s.systemHandlers.HandleRuntimeStatus)

			settingsHandler := settingshandlers.NewHandler(s.container.SettingsService, s.container.Credentials, s.log)
			settingsHandler.RegisterRoutes(r)

			curriculumHandler.RegisterRoutes(r)

			trainingHandler := traininghandlers.NewHandler(s.container.Orchestrator, s.log)
			trainingHandler.RegisterRoutes(r)

			exportHandler := exporthandlers.NewHandler(s.container.ExportService, s.log)
			exportHandler.RegisterRoutes(r)

			testbenchHandler := testbenchhandlers.NewHandler(s.container.TestBenchService, s.log)
			testbenchHandler.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
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
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
