package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/galleria/internal/health"
)

// readinessTimeout bounds each dependency probe.
const readinessTimeout = 3 * time.Second

// HealthHandlers holds named dependency checkers for readiness probes.
type HealthHandlers struct {
	checkers map[string]health.Checker
}

// NewHealthHandlers creates a new HealthHandlers instance.
func NewHealthHandlers(checkers map[string]health.Checker) *HealthHandlers {
	return &HealthHandlers{checkers: checkers}
}

// Health is the liveness probe. Always 200 while the process serves.
// GET /health
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "ok"})
}

// Ready is the readiness probe. Each configured dependency is checked;
// any failure yields 503 with per-dependency status.
// GET /ready
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statuses := make(map[string]string, len(h.checkers))
	healthy := true
	for name, checker := range h.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := checker.HealthCheck(checkCtx)
		cancel()

		if err != nil {
			slog.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
			statuses[name] = "unhealthy"
			healthy = false
		} else {
			statuses[name] = "ok"
		}
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	WriteJSON(w, ctx, status, map[string]any{
		"status":       overall,
		"dependencies": statuses,
	})
}
