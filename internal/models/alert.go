package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AlertType string
type AlertPriority string
type AlertStatus string

const (
	AlertTypeEmergency AlertType = "emergency"
	AlertTypeGeofence  AlertType = "geofence"

	AlertPriorityLow      AlertPriority = "low"
	AlertPriorityMedium   AlertPriority = "medium"
	AlertPriorityHigh     AlertPriority = "high"
	AlertPriorityCritical AlertPriority = "critical"

	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

type Alert struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID  primitive.ObjectID `json:"session_id" bson:"session_id"`
	EventID    primitive.ObjectID `json:"event_id" bson:"event_id"`
	GeofenceID primitive.ObjectID `json:"geofence_id" bson:"geofence_id"`
	UserID     primitive.ObjectID `json:"user_id" bson:"user_id"`
	Type       AlertType          `json:"type" bson:"type"`
	Priority   AlertPriority      `json:"priority" bson:"priority" default:"medium"`
	Message    string             `json:"message" bson:"message"`
	Location   Coordinate         `json:"location" bson:"location"`
	Status     AlertStatus        `json:"status" bson:"status" default:"active"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}
