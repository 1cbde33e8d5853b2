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

type sessionRepository struct {
	participants *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) interfaces.SessionRepository {
	return &sessionRepository{
		participants: db.Collection(database.CollectionParticipants),
	}
}

func (r *sessionRepository) ListParticipants(ctx context.Context, sessionID primitive.ObjectID) ([]*models.Participant, error) {
	cursor, err := r.participants.Find(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to find participants: %w", err)
	}
	defer cursor.Close(ctx)

	var participants []*models.Participant
	if err := cursor.All(ctx, &participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}

	return participants, nil
}
