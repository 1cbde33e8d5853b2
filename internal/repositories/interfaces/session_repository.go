package interfaces

import (
	"context"

	"geowatch/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionRepository interface {
	ListParticipants(ctx context.Context, sessionID primitive.ObjectID) ([]*models.Participant, error)
}
