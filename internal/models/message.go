package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// Message is a chat message in a session. A zero SenderID marks a system author.
type Message struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	SessionID primitive.ObjectID  `json:"session_id" bson:"session_id"`
	SenderID  primitive.ObjectID  `json:"sender_id" bson:"sender_id"`
	Type      MessageType         `json:"type" bson:"type" default:"text"`
	Content   string              `json:"content" bson:"content"`
	AlertID   *primitive.ObjectID `json:"alert_id,omitempty" bson:"alert_id,omitempty"`
	EventID   *primitive.ObjectID `json:"event_id,omitempty" bson:"event_id,omitempty"`
	CreatedAt time.Time           `json:"created_at" bson:"created_at"`
}
