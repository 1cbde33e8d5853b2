// Package ingest feeds location updates from message brokers into the
// location service.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidPayload = errors.New("invalid location payload")

// Processor is the part of the location service the consumers need.
type Processor interface {
	ProcessLocationUpdate(ctx context.Context, update *models.LocationUpdate) (*services.ProcessResult, error)
}

type locationPayload struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// decodeUpdate parses a broker payload. When the transport already names the
// session (MQTT topics do), a session_id in the body must agree with it.
func decodeUpdate(raw []byte, sessionID primitive.ObjectID) (*models.LocationUpdate, error) {
	var payload locationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if payload.SessionID != "" {
		fromBody, err := primitive.ObjectIDFromHex(payload.SessionID)
		if err != nil {
			return nil, fmt.Errorf("%w: session_id: %v", ErrInvalidPayload, err)
		}
		if !sessionID.IsZero() && fromBody != sessionID {
			return nil, fmt.Errorf("%w: session_id does not match the topic", ErrInvalidPayload)
		}
		sessionID = fromBody
	}
	if sessionID.IsZero() {
		return nil, fmt.Errorf("%w: missing session_id", ErrInvalidPayload)
	}

	userID, err := primitive.ObjectIDFromHex(payload.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id: %v", ErrInvalidPayload, err)
	}
	if payload.Lat == nil || payload.Lng == nil {
		return nil, fmt.Errorf("%w: missing coordinates", ErrInvalidPayload)
	}

	return &models.LocationUpdate{
		SessionID: sessionID,
		UserID:    userID,
		Location:  models.Coordinate{Lat: *payload.Lat, Lng: *payload.Lng},
		Accuracy:  payload.Accuracy,
		Timestamp: payload.Timestamp,
	}, nil
}

// sessionFromTopic extracts <id> from ".../sessions/<id>/...".
func sessionFromTopic(topic string) (primitive.ObjectID, error) {
	parts := strings.Split(topic, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "sessions" {
			id, err := primitive.ObjectIDFromHex(parts[i+1])
			if err != nil {
				return primitive.NilObjectID, fmt.Errorf("%w: topic %q: %v", ErrInvalidPayload, topic, err)
			}
			return id, nil
		}
	}
	return primitive.NilObjectID, nil
}

// isPermanent reports whether retrying the update can never succeed.
func isPermanent(err error) bool {
	return errors.Is(err, ErrInvalidPayload) || errors.Is(err, services.ErrInvalidLocation)
}
