package models

import (
	"math"
	"strings"
	"time"

	"geowatch/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GeofenceType string
type GeofenceShape string

const (
	GeofenceTypeSafeZone       GeofenceType = "safe_zone"
	GeofenceTypeRestrictedZone GeofenceType = "restricted_zone"
	GeofenceTypeAlertZone      GeofenceType = "alert_zone"

	GeofenceShapeCircle  GeofenceShape = "circle"
	GeofenceShapePolygon GeofenceShape = "polygon"
)

type Geofence struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID    primitive.ObjectID `json:"session_id" bson:"session_id" validate:"required"`
	Name         string             `json:"name" bson:"name" validate:"required"`
	Type         GeofenceType       `json:"type" bson:"type" validate:"required"`
	Shape        GeofenceShape      `json:"shape" bson:"shape" validate:"required"`
	Center       *Coordinate        `json:"center,omitempty" bson:"center,omitempty"`
	RadiusMeters float64            `json:"radius_meters,omitempty" bson:"radius_meters,omitempty"`
	Vertices     []Coordinate       `json:"vertices,omitempty" bson:"vertices,omitempty"`
	AlertOnEntry bool               `json:"alert_on_entry" bson:"alert_on_entry"`
	AlertOnExit  bool               `json:"alert_on_exit" bson:"alert_on_exit"`
	Schedule     *Schedule          `json:"schedule,omitempty" bson:"schedule,omitempty"`
	Rules        []GeofenceRule     `json:"rules,omitempty" bson:"rules,omitempty"`
	Active       bool               `json:"active" bson:"active" default:"true"`
	CreatedBy    primitive.ObjectID `json:"created_by" bson:"created_by"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

// Schedule is a weekly activation window. Days holds lowercase weekday names.
type Schedule struct {
	Enabled   bool     `json:"enabled" bson:"enabled"`
	StartTime string   `json:"start_time" bson:"start_time"` // HH:MM
	EndTime   string   `json:"end_time" bson:"end_time"`     // HH:MM
	Days      []string `json:"days" bson:"days"`
	Timezone  string   `json:"timezone,omitempty" bson:"timezone,omitempty"`
}

// GeofenceRule overrides alerting for a single user. It can only add alerting.
type GeofenceRule struct {
	UserID        primitive.ObjectID `json:"user_id" bson:"user_id"`
	AlertOnEntry  bool               `json:"alert_on_entry" bson:"alert_on_entry"`
	AlertOnExit   bool               `json:"alert_on_exit" bson:"alert_on_exit"`
	CustomMessage string             `json:"custom_message,omitempty" bson:"custom_message,omitempty"`
	Priority      AlertPriority      `json:"priority,omitempty" bson:"priority,omitempty"`
}

func (g *Geofence) RuleFor(userID primitive.ObjectID) *GeofenceRule {
	for i := range g.Rules {
		if g.Rules[i].UserID == userID {
			return &g.Rules[i]
		}
	}
	return nil
}

// HasValidGeometry reports whether the shape carries enough data to contain
// anything at all.
func (g *Geofence) HasValidGeometry() bool {
	switch g.Shape {
	case GeofenceShapeCircle:
		if g.Center == nil || !g.Center.IsValid() {
			return false
		}
		return g.RadiusMeters > 0 && !math.IsInf(g.RadiusMeters, 0) && !math.IsNaN(g.RadiusMeters)
	case GeofenceShapePolygon:
		if len(g.Vertices) < 3 {
			return false
		}
		for _, v := range g.Vertices {
			if !v.IsValid() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (g *Geofence) IsRestricted() bool {
	return g.Type == GeofenceTypeRestrictedZone
}

func NormalizeDay(day string) string {
	return strings.ToLower(strings.TrimSpace(day))
}

// Contains dispatches on shape. valid is false when the geometry cannot
// contain any point, in which case inside is always false.
func (g *Geofence) Contains(c Coordinate) (inside bool, valid bool) {
	if !g.HasValidGeometry() {
		return false, false
	}
	switch g.Shape {
	case GeofenceShapeCircle:
		return utils.IsPointInCircle(c.Point(), g.Center.Point(), g.RadiusMeters), true
	case GeofenceShapePolygon:
		return utils.IsPointInPolygon(c.Point(), g.Polygon()), true
	}
	return false, false
}

func (g *Geofence) Polygon() utils.Polygon {
	polygon := make(utils.Polygon, len(g.Vertices))
	for i, v := range g.Vertices {
		polygon[i] = v.Point()
	}
	return polygon
}
