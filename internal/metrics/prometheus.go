// Package metrics provides Prometheus metrics for the rupture query service.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	responseSize     *prometheus.HistogramVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheComputes  *prometheus.HistogramVec
	cacheEvictions prometheus.Counter

	resolveDuration *prometheus.HistogramVec
	resolveErrors   *prometheus.CounterVec
	queryErrors     *prometheus.CounterVec

	healthStatus prometheus.Gauge

	gatherer prometheus.Gatherer
}

var globalMetrics *Metrics

// NewMetrics creates and registers the metrics on the default registry.
func NewMetrics() *Metrics {
	if globalMetrics != nil {
		return globalMetrics
	}
	globalMetrics = NewMetricsWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	return globalMetrics
}

// NewMetricsWithRegistry registers the metrics on reg and serves them from
// gatherer.
func NewMetricsWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	durationBuckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	return &Metrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solvis_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solvis_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: durationBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "solvis_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		responseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solvis_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		cacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solvis_cache_hits_total",
				Help: "Memo cache hits by scope and tier",
			},
			[]string{"scope", "tier"},
		),
		cacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solvis_cache_misses_total",
				Help: "Memo cache misses by scope",
			},
			[]string{"scope"},
		),
		cacheComputes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solvis_cache_compute_duration_seconds",
				Help:    "Duration of computations run on a cache miss",
				Buckets: durationBuckets,
			},
			[]string{"scope", "status"},
		),
		cacheEvictions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "solvis_cache_evictions_total",
				Help: "Entries evicted from the in-process cache",
			},
		),
		resolveDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solvis_resolve_duration_seconds",
				Help:    "Rupture id set resolution duration by backend and group",
				Buckets: durationBuckets,
			},
			[]string{"backend", "group"},
		),
		resolveErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solvis_resolve_errors_total",
				Help: "Failed rupture id set resolutions by backend and group",
			},
			[]string{"backend", "group"},
		),
		queryErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solvis_query_errors_total",
				Help: "Query errors returned to clients by error code",
			},
			[]string{"code"},
		),
		healthStatus: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "solvis_health_status",
				Help: "Health status of the service (1 = healthy, 0 = unhealthy)",
			},
		),
		gatherer: gatherer,
	}
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordResponseSize records the response size.
func (m *Metrics) RecordResponseSize(method, path string, size int) {
	m.responseSize.WithLabelValues(method, path).Observe(float64(size))
}

// IncRequestsInFlight increments the in-flight requests gauge.
func (m *Metrics) IncRequestsInFlight() {
	m.requestsInFlight.Inc()
}

// DecRequestsInFlight decrements the in-flight requests gauge.
func (m *Metrics) DecRequestsInFlight() {
	m.requestsInFlight.Dec()
}

// RecordCacheHit implements cache.Recorder.
func (m *Metrics) RecordCacheHit(scope, tier string) {
	m.cacheHits.WithLabelValues(scope, tier).Inc()
}

// RecordCacheMiss implements cache.Recorder.
func (m *Metrics) RecordCacheMiss(scope string) {
	m.cacheMisses.WithLabelValues(scope).Inc()
}

// RecordCacheCompute implements cache.Recorder.
func (m *Metrics) RecordCacheCompute(scope string, duration time.Duration, err error) {
	m.cacheComputes.WithLabelValues(scope, statusLabel(err)).Observe(duration.Seconds())
}

// RecordCacheEviction implements cache.Recorder.
func (m *Metrics) RecordCacheEviction() {
	m.cacheEvictions.Inc()
}

// RecordResolve implements resolver.Recorder.
func (m *Metrics) RecordResolve(backend, group string, duration time.Duration, err error) {
	m.resolveDuration.WithLabelValues(backend, group).Observe(duration.Seconds())
	if err != nil {
		m.resolveErrors.WithLabelValues(backend, group).Inc()
	}
}

// RecordQueryError counts an error returned to a client.
func (m *Metrics) RecordQueryError(code string) {
	m.queryErrors.WithLabelValues(code).Inc()
}

// SetHealthStatus sets the health status.
func (m *Metrics) SetHealthStatus(healthy bool) {
	if healthy {
		m.healthStatus.Set(1)
	} else {
		m.healthStatus.Set(0)
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// MetricsServer provides a separate HTTP server for Prometheus metrics.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(port int, path string, m *Metrics, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the metrics server. It returns nil after Shutdown.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server", zap.String("addr", ms.server.Addr))
	if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// MetricsMiddleware creates middleware that records HTTP metrics. Paths
// are labelled by the route template when pathLabel is set, so that path
// parameters do not explode label cardinality.
func MetricsMiddleware(m *Metrics, pathLabel func(r *http.Request) string) func(http.Handler) http.Handler {
	if pathLabel == nil {
		pathLabel = func(r *http.Request) string { return r.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.IncRequestsInFlight()
			defer m.DecRequestsInFlight()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := pathLabel(r)
			m.RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
			m.RecordResponseSize(r.Method, path, rw.size)
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture metrics.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}
