package interfaces

import (
	"context"

	"geowatch/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GeofenceRepository interface {
	// ListActiveGeofences returns every geofence of the session with active=true,
	// including geometry, schedule and per-user rules.
	ListActiveGeofences(ctx context.Context, sessionID primitive.ObjectID) ([]*models.Geofence, error)
}
