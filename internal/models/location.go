package models

import (
	"math"
	"time"

	"geowatch/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Coordinate struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

func (c Coordinate) IsValid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinate) Point() utils.Point {
	return utils.Point{Lat: c.Lat, Lng: c.Lng}
}

// LocationUpdate is a single inbound movement sample. Delivery is at-least-once.
type LocationUpdate struct {
	SessionID primitive.ObjectID `json:"session_id" bson:"session_id"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	Location  Coordinate         `json:"location" bson:"location"`
	Accuracy  *float64           `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	Timestamp time.Time          `json:"timestamp" bson:"timestamp"`
}

type LocationSample struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID primitive.ObjectID `json:"session_id" bson:"session_id"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	Location  Coordinate         `json:"location" bson:"location"`
	Accuracy  *float64           `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	Timestamp time.Time          `json:"timestamp" bson:"timestamp"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

func NewLocationSample(update *LocationUpdate) *LocationSample {
	return &LocationSample{
		SessionID: update.SessionID,
		UserID:    update.UserID,
		Location:  update.Location,
		Accuracy:  update.Accuracy,
		Timestamp: update.Timestamp,
	}
}

// SameReading reports whether the sample is a redelivery of update.
func (s *LocationSample) SameReading(update *LocationUpdate) bool {
	return s.SessionID == update.SessionID &&
		s.UserID == update.UserID &&
		s.Timestamp.Equal(update.Timestamp) &&
		s.Location == update.Location
}
