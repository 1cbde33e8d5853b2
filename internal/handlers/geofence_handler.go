package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"geowatch/internal/middleware"
	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/internal/services"
	"geowatch/internal/utils"
	"geowatch/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GeofenceHandler struct {
	locationService services.LocationService
	isMember        func(ctx context.Context, sessionID, userID primitive.ObjectID) (bool, error)
	logger          *logger.Logger
}

func NewGeofenceHandler(locationService services.LocationService, sessionRepo interfaces.SessionRepository, log *logger.Logger) *GeofenceHandler {
	return &GeofenceHandler{
		locationService: locationService,
		isMember:        services.SessionMembership(sessionRepo),
		logger:          log.WithComponent("geofence_handler"),
	}
}

// LocationRequest is the body of a location upload. The user is taken from
// the token and the session from the path.
type LocationRequest struct {
	Lat       *float64  `json:"lat" binding:"required"`
	Lng       *float64  `json:"lng" binding:"required"`
	Accuracy  *float64  `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// SubmitLocation ingests one location sample and returns the events it produced.
func (h *GeofenceHandler) SubmitLocation(c *gin.Context) {
	sessionID, userID, ok := h.participant(c)
	if !ok {
		return
	}

	var request LocationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	update := &models.LocationUpdate{
		SessionID: sessionID,
		UserID:    userID,
		Location:  models.Coordinate{Lat: *request.Lat, Lng: *request.Lng},
		Accuracy:  request.Accuracy,
		Timestamp: request.Timestamp,
	}

	ctx := logger.ContextWithSession(c.Request.Context(), sessionID, userID)
	result, err := h.locationService.ProcessLocationUpdate(ctx, update)
	if err != nil {
		if errors.Is(err, services.ErrInvalidLocation) {
			utils.BadRequestResponse(c, err.Error())
			return
		}
		h.logger.WithContext(ctx).WithError(err).Error("Failed to process location update")
		utils.ErrorResponse(c, http.StatusInternalServerError, "LOCATION_PROCESSING_FAILED", "Failed to process location update")
		return
	}

	utils.SuccessResponse(c, "Location processed successfully", result)
}

// ListEvents returns the geofence events of a session, newest first by default.
// ?event_type= and ?user_id= narrow the listing.
func (h *GeofenceHandler) ListEvents(c *gin.Context) {
	sessionID, _, ok := h.participant(c)
	if !ok {
		return
	}

	var filter models.EventFilter
	if eventType := c.Query("event_type"); eventType != "" {
		filter.EventType = models.GeofenceEventType(eventType)
		if !filter.EventType.IsValid() {
			utils.BadRequestResponse(c, "Invalid event type")
			return
		}
	}
	if userID := c.Query("user_id"); userID != "" {
		id, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid user ID")
			return
		}
		filter.UserID = id
	}

	params := utils.GetPaginationParams(c)
	events, total, err := h.locationService.ListEvents(c.Request.Context(), sessionID, filter, params)
	if err != nil {
		h.logger.WithContext(c.Request.Context()).WithSessionID(sessionID).WithError(err).Error("Failed to list geofence events")
		utils.ErrorResponse(c, http.StatusInternalServerError, "EVENTS_FETCH_FAILED", "Failed to list events")
		return
	}

	utils.SuccessResponseWithMeta(c, "Events retrieved successfully", events, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// AcknowledgeEvent marks an event as seen by the caller.
func (h *GeofenceHandler) AcknowledgeEvent(c *gin.Context) {
	eventID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid event ID")
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	event, err := h.locationService.AcknowledgeEvent(c.Request.Context(), eventID, userID)
	switch {
	case err == nil:
		utils.SuccessResponse(c, "Event acknowledged successfully", event)
	case errors.Is(err, interfaces.ErrNotFound):
		utils.NotFoundResponse(c, "Event")
	case errors.Is(err, services.ErrEventAlreadyAcknowledged):
		utils.ConflictResponse(c, "Event already acknowledged")
	default:
		h.logger.WithContext(c.Request.Context()).WithError(err).Error("Failed to acknowledge event")
		utils.ErrorResponse(c, http.StatusInternalServerError, "EVENT_ACK_FAILED", "Failed to acknowledge event")
	}
}

// participant resolves the path session and the caller, and rejects callers
// that are not members of the session. It writes the error response itself.
func (h *GeofenceHandler) participant(c *gin.Context) (primitive.ObjectID, primitive.ObjectID, bool) {
	sessionID, err := primitive.ObjectIDFromHex(c.Param("session_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid session ID")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}

	userID, ok := currentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, primitive.NilObjectID, false
	}

	member, err := h.isMember(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.logger.WithContext(c.Request.Context()).WithSessionID(sessionID).WithError(err).Error("Failed to check session membership")
		utils.InternalServerErrorResponse(c)
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	if member {
		return sessionID, userID, true
	}

	utils.ForbiddenResponse(c)
	return primitive.NilObjectID, primitive.NilObjectID, false
}

func currentUser(c *gin.Context) (primitive.ObjectID, bool) {
	value, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return primitive.NilObjectID, false
	}
	userID, ok := value.(primitive.ObjectID)
	return userID, ok && !userID.IsZero()
}
