package interfaces

import (
	"context"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GeofenceEventRepository interface {
	// GetLastEvent returns nil, nil when no event of that type exists.
	GetLastEvent(ctx context.Context, userID, geofenceID primitive.ObjectID, eventType models.GeofenceEventType) (*models.GeofenceEvent, error)
	// InsertEvent fails with ErrSessionNotFound when the session was deleted.
	InsertEvent(ctx context.Context, event *models.GeofenceEvent) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.GeofenceEvent, error)
	// ListBySession returns one page of the session's events matching filter,
	// together with the total number of matches.
	ListBySession(ctx context.Context, sessionID primitive.ObjectID, filter models.EventFilter, params *utils.PaginationParams) ([]*models.GeofenceEvent, int64, error)
	// Acknowledge sets the acknowledgement fields once. It returns ErrNotFound
	// for an unknown id and ErrAlreadyAcknowledged when they are already set.
	Acknowledge(ctx context.Context, id, acknowledgedBy primitive.ObjectID, at time.Time) error
}
