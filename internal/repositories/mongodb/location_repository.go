package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type locationRepository struct {
	collection *mongo.Collection
}

func NewLocationRepository(db *mongo.Database) interfaces.LocationRepository {
	return &locationRepository{
		collection: db.Collection(database.CollectionLocations),
	}
}

func (r *locationRepository) GetLatestLocation(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.LocationSample, error) {
	var sample models.LocationSample
	err := r.collection.FindOne(
		ctx,
		bson.M{"session_id": sessionID, "user_id": userID},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "created_at", Value: -1}}),
	).Decode(&sample)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest location: %w", err)
	}

	return &sample, nil
}

func (r *locationRepository) SaveLocation(ctx context.Context, sample *models.LocationSample) error {
	if sample.ID.IsZero() {
		sample.ID = primitive.NewObjectID()
	}
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, sample); err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}

	return nil
}
