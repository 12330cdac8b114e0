package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/health"
	"github.com/turtacn/LumiGrid/pkg/types/common"
)

const (
	readinessTimeout = 5 * time.Second
	detailTimeout    = 10 * time.Second
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	registry *health.Registry
	version  string
	startAt  time.Time
}

// NewHealthHandler creates a HealthHandler. A nil registry is always ready.
func NewHealthHandler(version string, registry *health.Registry) *HealthHandler {
	if registry == nil {
		registry = health.NewRegistry(nil, nil)
	}
	return &HealthHandler{registry: registry, version: version, startAt: time.Now()}
}

// LivenessResponse is the response for the liveness probe.
type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ReadinessResponse is the response for the readiness probe.
type ReadinessResponse struct {
	Status     common.HealthStatus      `json:"status"`
	Version    string                   `json:"version,omitempty"`
	Uptime     string                   `json:"uptime,omitempty"`
	Components []common.ComponentHealth `json:"components,omitempty"`
}

// Liveness handles GET /healthz. It never checks dependencies.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: h.version,
		Uptime:  h.uptime(),
	})
}

// Readiness handles GET /readyz: 503 when any dependency is down.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, readinessTimeout, false)
}

// Detailed handles GET /healthz/detail.
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, detailTimeout, true)
}

func (h *HealthHandler) report(w http.ResponseWriter, r *http.Request, timeout time.Duration, detail bool) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	rep := h.registry.Check(ctx)
	resp := ReadinessResponse{Status: rep.Status, Components: rep.Components}
	if detail {
		resp.Version = h.version
		resp.Uptime = h.uptime()
	}

	code := http.StatusOK
	if !rep.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *HealthHandler) uptime() string {
	return time.Since(h.startAt).Truncate(time.Second).String()
}
