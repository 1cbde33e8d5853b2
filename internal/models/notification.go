package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string
type NotificationStatus string

const (
	NotificationTypeGeofenceAlert NotificationType = "geofence_alert"
	NotificationTypeEmergency     NotificationType = "emergency"

	NotificationStatusUnread NotificationStatus = "unread"
	NotificationStatusRead   NotificationStatus = "read"
)

type Notification struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID primitive.ObjectID `json:"session_id" bson:"session_id"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	Type      NotificationType   `json:"type" bson:"type" validate:"required"`
	Status    NotificationStatus `json:"status" bson:"status" default:"unread"`
	Title     string             `json:"title" bson:"title" validate:"required"`
	Message   string             `json:"message" bson:"message" validate:"required"`
	AlertID   primitive.ObjectID `json:"alert_id" bson:"alert_id"`
	EventID   primitive.ObjectID `json:"event_id" bson:"event_id"`
	Priority  AlertPriority      `json:"priority" bson:"priority"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
