package websocket

import (
	"context"
	"net/http"

	"geowatch/internal/config"
	"geowatch/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MembershipFunc reports whether userID may watch sessionID.
type MembershipFunc func(ctx context.Context, sessionID, userID primitive.ObjectID) (bool, error)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	config   *config.WebSocketConfig
	isMember MembershipFunc
}

func NewHandler(hub *Hub, cfg *config.WebSocketConfig, isMember MembershipFunc) *Handler {
	return &Handler{
		hub:      hub,
		config:   cfg,
		isMember: isMember,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket subscribes the authenticated user to ?session_id= when they
// participate in that session.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return
	}
	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		utils.BadRequestResponse(c, "Invalid user ID")
		return
	}

	sessionID, err := primitive.ObjectIDFromHex(c.Query("session_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid session ID")
		return
	}

	member, err := h.isMember(c.Request.Context(), sessionID, userObjectID)
	if err != nil {
		h.hub.logger.WithSessionID(sessionID).WithError(err).Error("Failed to check session membership")
		utils.InternalServerErrorResponse(c)
		return
	}
	if !member {
		utils.ForbiddenResponse(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, sessionID, userObjectID, h.config.PingInterval, h.config.PongTimeout)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Path is the route the feed is mounted on, relative to the API group.
func (h *Handler) Path() string {
	if h.config.Path == "" {
		return "/ws"
	}
	return h.config.Path
}
