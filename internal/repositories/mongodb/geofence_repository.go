package mongodb

import (
	"context"
	"fmt"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type geofenceRepository struct {
	collection *mongo.Collection
}

func NewGeofenceRepository(db *mongo.Database) interfaces.GeofenceRepository {
	return &geofenceRepository{
		collection: db.Collection(database.CollectionGeofences),
	}
}

func (r *geofenceRepository) ListActiveGeofences(ctx context.Context, sessionID primitive.ObjectID) ([]*models.Geofence, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID, "active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to find geofences: %w", err)
	}
	defer cursor.Close(ctx)

	var geofences []*models.Geofence
	if err := cursor.All(ctx, &geofences); err != nil {
		return nil, fmt.Errorf("failed to decode geofences: %w", err)
	}

	return geofences, nil
}
