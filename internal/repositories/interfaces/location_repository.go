package interfaces

import (
	"context"

	"geowatch/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LocationRepository interface {
	// GetLatestLocation returns nil, nil when the user has no stored sample.
	GetLatestLocation(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.LocationSample, error)
	SaveLocation(ctx context.Context, sample *models.LocationSample) error
}
