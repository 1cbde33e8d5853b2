package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/internal/utils"
	"geowatch/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type geofenceEventRepository struct {
	collection *mongo.Collection
	sessions   *mongo.Collection
}

func NewGeofenceEventRepository(db *mongo.Database) interfaces.GeofenceEventRepository {
	return &geofenceEventRepository{
		collection: db.Collection(database.CollectionGeofenceEvents),
		sessions:   db.Collection(database.CollectionSessions),
	}
}

func (r *geofenceEventRepository) GetLastEvent(ctx context.Context, userID, geofenceID primitive.ObjectID, eventType models.GeofenceEventType) (*models.GeofenceEvent, error) {
	var event models.GeofenceEvent
	err := r.collection.FindOne(
		ctx,
		bson.M{"user_id": userID, "geofence_id": geofenceID, "event_type": eventType},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}),
	).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last %s event: %w", eventType, err)
	}

	return &event, nil
}

// InsertEvent refuses events for sessions that no longer exist.
func (r *geofenceEventRepository) InsertEvent(ctx context.Context, event *models.GeofenceEvent) (primitive.ObjectID, error) {
	count, err := r.sessions.CountDocuments(ctx, bson.M{"_id": event.SessionID}, options.Count().SetLimit(1))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to check session: %w", err)
	}
	if count == 0 {
		return primitive.NilObjectID, interfaces.ErrSessionNotFound
	}

	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to insert geofence event: %w", err)
	}

	return event.ID, nil
}

func (r *geofenceEventRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.GeofenceEvent, error) {
	var event models.GeofenceEvent
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get geofence event: %w", err)
	}

	return &event, nil
}

func (r *geofenceEventRepository) ListBySession(ctx context.Context, sessionID primitive.ObjectID, eventFilter models.EventFilter, params *utils.PaginationParams) ([]*models.GeofenceEvent, int64, error) {
	filter := bson.M{"session_id": sessionID}
	if eventFilter.EventType != "" {
		filter["event_type"] = eventFilter.EventType
	}
	if !eventFilter.UserID.IsZero() {
		filter["user_id"] = eventFilter.UserID
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count geofence events: %w", err)
	}

	opts := params.FindOptions(params.SortField("timestamp", models.EventSortFields...))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find geofence events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*models.GeofenceEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, 0, fmt.Errorf("failed to decode geofence events: %w", err)
	}

	return events, total, nil
}

func (r *geofenceEventRepository) Acknowledge(ctx context.Context, id, acknowledgedBy primitive.ObjectID, at time.Time) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "acknowledged": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{
			"acknowledged":    true,
			"acknowledged_by": acknowledgedBy,
			"acknowledged_at": at,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to acknowledge geofence event: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check geofence event: %w", err)
	}
	if count == 0 {
		return interfaces.ErrNotFound
	}
	return interfaces.ErrAlreadyAcknowledged
}
