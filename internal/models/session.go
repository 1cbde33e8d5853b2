package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Participant is a member of a coordination session. Membership is managed
// outside this service; it is only read here.
type Participant struct {
	SessionID primitive.ObjectID `json:"session_id" bson:"session_id"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	Name      string             `json:"name" bson:"name"`
}

func (p *Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.UserID.Hex()
}
