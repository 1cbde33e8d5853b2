package handlers

import (
	"context"
	"net/http"
	"time"

	"geowatch/internal/utils"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency whose liveness is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	data := gin.H{
		"app":     utils.AppName,
		"version": utils.AppVersion,
		"checks":  status,
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, utils.APIResponse{
			Status:    utils.StatusError,
			Message:   "Service degraded",
			Data:      data,
			Timestamp: time.Now(),
		})
		return
	}
	utils.SuccessResponse(c, "Service healthy", data)
}
