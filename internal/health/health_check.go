// Package health provides liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is a dependency whose availability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// StatusSetter receives the outcome of each readiness check.
type StatusSetter interface {
	SetHealthStatus(healthy bool)
}

// HealthChecker provides health check endpoints.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]Pinger
	status  StatusSetter
	timeout time.Duration
	logger  *zap.Logger
}

// HealthStatus represents the health status response.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a health checker. status may be nil.
func NewHealthChecker(status StatusSetter, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]Pinger),
		status:  status,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Register adds a named readiness check. Nil pingers are ignored so that
// optional dependencies can be registered unconditionally.
func (h *HealthChecker) Register(name string, p Pinger) {
	if p == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = p
}

// LivenessHandler handles liveness probe requests.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	})
}

// ReadinessHandler handles readiness probe requests.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks, ready := h.Check(ctx)
	status := HealthStatus{
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}
	if ready {
		status.Status = "ready"
		writeStatus(w, http.StatusOK, status)
		return
	}
	status.Status = "not_ready"
	writeStatus(w, http.StatusServiceUnavailable, status)
}

// Check pings every registered dependency and reports per-check results.
func (h *HealthChecker) Check(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		h.mu.RLock()
		p := h.checks[name]
		h.mu.RUnlock()

		if err := p.Ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("check", name), zap.Error(err))
			results[name] = "unhealthy: " + err.Error()
			ready = false
			continue
		}
		results[name] = "healthy"
	}

	if h.status != nil {
		h.status.SetHealthStatus(ready)
	}
	return results, ready
}

func writeStatus(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
