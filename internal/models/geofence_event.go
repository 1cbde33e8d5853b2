package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GeofenceEventType string

const (
	GeofenceEventEntry     GeofenceEventType = "entry"
	GeofenceEventExit      GeofenceEventType = "exit"
	GeofenceEventViolation GeofenceEventType = "violation"
)

type GeofenceEvent struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	GeofenceID     primitive.ObjectID  `json:"geofence_id" bson:"geofence_id"`
	SessionID      primitive.ObjectID  `json:"session_id" bson:"session_id"`
	UserID         primitive.ObjectID  `json:"user_id" bson:"user_id"`
	EventType      GeofenceEventType   `json:"event_type" bson:"event_type"`
	Timestamp      time.Time           `json:"timestamp" bson:"timestamp"`
	Location       Coordinate          `json:"location" bson:"location"`
	AlertSent      bool                `json:"alert_sent" bson:"alert_sent"`
	Acknowledged   bool                `json:"acknowledged" bson:"acknowledged"`
	AcknowledgedBy *primitive.ObjectID `json:"acknowledged_by,omitempty" bson:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time          `json:"acknowledged_at,omitempty" bson:"acknowledged_at,omitempty"`
	Metadata       *EventMetadata      `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

type EventMetadata struct {
	DurationMs     *int64   `json:"duration_ms,omitempty" bson:"duration_ms,omitempty"`
	DistanceMeters *float64 `json:"distance_meters,omitempty" bson:"distance_meters,omitempty"`
	Speed          *float64 `json:"speed,omitempty" bson:"speed,omitempty"` // m/s
	Accuracy       *float64 `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
}

func (m *EventMetadata) IsEmpty() bool {
	return m == nil || (m.DurationMs == nil && m.DistanceMeters == nil && m.Speed == nil && m.Accuracy == nil)
}

func (t GeofenceEventType) IsValid() bool {
	switch t {
	case GeofenceEventEntry, GeofenceEventExit, GeofenceEventViolation:
		return true
	}
	return false
}

// EventSortFields are the fields an event listing may be ordered by.
var EventSortFields = []string{"timestamp", "event_type", "user_id", "geofence_id"}

// EventFilter narrows an event listing. Zero fields match every event.
type EventFilter struct {
	EventType GeofenceEventType
	UserID    primitive.ObjectID
}

func (f EventFilter) Matches(e *GeofenceEvent) bool {
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	return f.UserID.IsZero() || e.UserID == f.UserID
}
