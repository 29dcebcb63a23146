package handler

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 5 * time.Second

// HealthChecker is a dependency the service cannot answer checks without
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	dependencies map[string]HealthChecker
	version      string
}

// NewHealthHandler creates a new health handler. Nil checkers are skipped,
// so optional dependencies can be passed unconditionally.
func NewHealthHandler(version string, dependencies map[string]HealthChecker) *HealthHandler {
	deps := make(map[string]HealthChecker, len(dependencies))
	for name, checker := range dependencies {
		if checker != nil {
			deps[name] = checker
		}
	}
	return &HealthHandler{dependencies: deps, version: version}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	services := make(map[string]string, len(h.dependencies))
	allHealthy := true
	for name, checker := range h.dependencies {
		if err := checker.Ping(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			allHealthy = false
			continue
		}
		services[name] = "healthy"
	}

	response := HealthResponse{
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}
	if !allHealthy {
		response.Status = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	response.Status = "ready"
	writeJSON(w, http.StatusOK, response)
}

// Live handles GET /live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
