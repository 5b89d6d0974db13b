package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Check reports the health of one dependency. A nil error is healthy.
type Check func(ctx context.Context) error

// HealthHandler reports process uptime and the status of each dependency.
type HealthHandler struct {
	checks    map[string]Check
	version   string
	startTime time.Time
	timeout   time.Duration
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Revision     int64             `json:"revision"`
	Dependencies map[string]string `json:"dependencies"`
}

// NewHealthHandler returns a handler running checks with a short timeout.
func NewHealthHandler(version string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
	}
}

// report runs every check. Status is "degraded" when any check fails.
func (h *HealthHandler) report(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	status := "healthy"
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = fmt.Sprintf("unhealthy: %v", err)
			status = "degraded"
			continue
		}
		deps[name] = "healthy"
	}
	return HealthResponse{
		Status:       status,
		Version:      h.version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Dependencies: deps,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := s.health.report(r.Context())
	resp.Revision = s.engine.Revision()
	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
