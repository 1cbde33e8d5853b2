package services

import (
	"context"
	"fmt"

	"geowatch/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionMembership returns a check reporting whether userID participates in
// sessionID.
func SessionMembership(repo interfaces.SessionRepository) func(ctx context.Context, sessionID, userID primitive.ObjectID) (bool, error) {
	return func(ctx context.Context, sessionID, userID primitive.ObjectID) (bool, error) {
		participants, err := repo.ListParticipants(ctx, sessionID)
		if err != nil {
			return false, fmt.Errorf("failed to load session participants: %w", err)
		}
		for _, p := range participants {
			if p.UserID == userID {
				return true, nil
			}
		}
		return false, nil
	}
}
