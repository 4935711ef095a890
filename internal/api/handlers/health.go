package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker verifies one dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	startTime time.Time
	checkers  map[string]HealthChecker
}

// NewHealthHandler creates a health handler. Nil checkers are reported as
// disabled rather than down.
func NewHealthHandler(checkers map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		checkers:  checkers,
	}
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Services  map[string]string `json:"services"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	services := make(map[string]string, len(h.checkers))
	for name, checker := range h.checkers {
		if checker == nil {
			services[name] = "disabled"
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			services[name] = "down"
			status = "degraded"
			continue
		}
		services[name] = "up"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Services:  services,
	})
}

// Live handles GET /live; it only proves the process is serving.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
