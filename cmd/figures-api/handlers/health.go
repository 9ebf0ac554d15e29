package handlers

import (
	"context"
	"net/http"
	"os"
	"time"
)

// HealthHandler answers liveness and readiness checks.
type HealthHandler struct {
	service string
	jarPath string
	pingDB  func(context.Context) error
}

// NewHealthHandler creates a health handler. pingDB may be nil.
func NewHealthHandler(service, jarPath string, pingDB func(context.Context) error) *HealthHandler {
	return &HealthHandler{service: service, jarPath: jarPath, pingDB: pingDB}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.service,
	})
}

// Ready handles GET /ready: the extraction jar must exist and the history
// database, when configured, must answer.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if info, err := os.Stat(h.jarPath); err != nil || info.IsDir() {
		checks["extractor"] = "jar not found: " + h.jarPath
		ready = false
	} else {
		checks["extractor"] = "ok"
	}

	if h.pingDB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pingDB(ctx); err != nil {
			checks["history"] = err.Error()
			ready = false
		} else {
			checks["history"] = "ok"
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
