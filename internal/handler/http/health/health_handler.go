package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/atomic"

	"clinic-bff/pkg/logger"
)

// probeTimeout bounds each dependency check during a readiness probe.
const probeTimeout = 2 * time.Second

// Probe checks one dependency the gateway cannot serve without.
type Probe func(ctx context.Context) error

// ReadinessResponse is the /readyz body.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health check endpoints for Kubernetes probes
// Follows constructor injection pattern - no global state
type HealthHandler struct {
	readiness *atomic.Bool
	probes    map[string]Probe
}

// NewHealthHandler creates a new HealthHandler with dependency injection
// readiness: Thread-safe boolean flag indicating if service is ready to handle traffic
// probes: named dependency checks run on every readiness probe (may be nil)
func NewHealthHandler(readiness *atomic.Bool, probes map[string]Probe) *HealthHandler {
	return &HealthHandler{
		readiness: readiness,
		probes:    probes,
	}
}

// HandleLiveness handles GET /healthz - liveness probe
// Always returns 200 OK to indicate the container is alive
func (h *HealthHandler) HandleLiveness(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// HandleReadiness handles GET /readyz - readiness probe
// Returns 503 while starting or draining, or when a dependency probe fails
func (h *HealthHandler) HandleReadiness(c echo.Context) error {
	if !h.readiness.Load() {
		return c.JSON(http.StatusServiceUnavailable, ReadinessResponse{Status: "draining"})
	}

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed map[string]string
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
		err := h.probes[name](ctx)
		cancel()
		if err != nil {
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[name] = err.Error()
			logger.Warn("Readiness probe %s failed: %v", name, err)
		}
	}
	if failed != nil {
		return c.JSON(http.StatusServiceUnavailable, ReadinessResponse{Status: "unavailable", Checks: failed})
	}
	return c.JSON(http.StatusOK, ReadinessResponse{Status: "ready"})
}
