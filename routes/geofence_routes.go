package routes

import (
	"geowatch/internal/handlers"
	"geowatch/internal/middleware"
	"geowatch/pkg/websocket"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Geofence  *handlers.GeofenceHandler
	Health    *handlers.HealthHandler
	WebSocket *websocket.Handler
}

// SetupGeofenceRoutes mounts the ingest, event and live feed routes. All of
// them require a token; rate limiting is applied per authenticated user.
func SetupGeofenceRoutes(r *gin.Engine, h *Handlers, jwtSecret string, limiter *middleware.RateLimiter) {
	r.GET("/health", h.Health.Health)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired(jwtSecret))
	if limiter != nil {
		api.Use(limiter.Middleware())
	}

	sessions := api.Group("/sessions/:session_id")
	{
		sessions.POST("/locations", h.Geofence.SubmitLocation)
		sessions.GET("/events", h.Geofence.ListEvents)
	}

	api.POST("/events/:id/acknowledge", h.Geofence.AcknowledgeEvent)

	if h.WebSocket != nil {
		api.GET(h.WebSocket.Path(), h.WebSocket.HandleWebSocket)
	}
}
