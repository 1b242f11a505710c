package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/config"
	"github.com/GNS-Science/solvis-query/internal/health"
	"github.com/GNS-Science/solvis-query/internal/metrics"
	"github.com/GNS-Science/solvis-query/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *Handlers
	healthCheck  *health.HealthChecker
	errorHandler *ErrorHandler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server. m may be nil to skip HTTP metrics.
func NewServer(cfg *config.Config, handlers *Handlers, errorHandler *ErrorHandler, healthCheck *health.HealthChecker, m *metrics.Metrics, logger *zap.Logger) *Server {
	router := mux.NewRouter()

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		handlers:     handlers,
		healthCheck:  healthCheck,
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Recovery(s.logger),
		middleware.Logging(s.logger),
		middleware.CORS([]string{"*"}),
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}
	if s.metrics != nil {
		middlewareChain = append(middlewareChain, metrics.MetricsMiddleware(s.metrics, routeTemplate))
	}
	middlewareChain = append(middlewareChain, middleware.Timeout(s.cfg.Server.RequestTimeout))

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Filter queries
	v1.HandleFunc("/ruptures", s.handlers.FilterRuptures).Methods(http.MethodPost)
	v1.HandleFunc("/rupture-sections", s.handlers.FilterRuptureSections).Methods(http.MethodPost)
	v1.HandleFunc("/mfd", s.handlers.MFD).Methods(http.MethodPost)

	// Catalogue browsing
	v1.HandleFunc("/backends", s.handlers.Backends).Methods(http.MethodGet)
	v1.HandleFunc("/models", s.handlers.Models).Methods(http.MethodGet)
	v1.HandleFunc("/models/{model_id}/fault-systems", s.handlers.FaultSystems).Methods(http.MethodGet)
	fs := v1.PathPrefix("/models/{model_id}/fault-systems/{fault_system}").Subrouter()
	fs.HandleFunc("/parent-faults", s.handlers.ParentFaultNames).Methods(http.MethodGet)
	fs.HandleFunc("/ruptures/{rupture_index:[0-9]+}", s.handlers.RuptureDetail).Methods(http.MethodGet)

	// Locations
	v1.HandleFunc("/locations", s.handlers.Locations).Methods(http.MethodGet)
	v1.HandleFunc("/locations/geojson", s.handlers.LocationsGeoJSON).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, ErrorCodeNotFound, "endpoint not found", nil, r.Header.Get(middleware.RequestIDHeader))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed", nil, r.Header.Get(middleware.RequestIDHeader))
	})
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.Int("port", s.cfg.Server.Port))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// routeTemplate labels metrics with the matched route rather than the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
