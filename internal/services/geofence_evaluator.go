package services

import (
	"context"
	"fmt"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/internal/utils"
	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransitionCandidate is a detected transition that has not been persisted yet.
type TransitionCandidate struct {
	Geofence      *models.Geofence
	EventType     models.GeofenceEventType
	ShouldAlert   bool
	CustomMessage string
	Priority      models.AlertPriority
}

type GeofenceEvaluator interface {
	// Evaluate compares current against previous for every active geofence of
	// the session. A nil previous is treated as outside every zone.
	Evaluate(ctx context.Context, sessionID, userID primitive.ObjectID, current models.Coordinate, previous *models.Coordinate, now time.Time) ([]TransitionCandidate, error)
}

type geofenceEvaluator struct {
	geofenceRepo interfaces.GeofenceRepository
	schedules    ScheduleEvaluator
	logger       *logger.Logger
}

func NewGeofenceEvaluator(geofenceRepo interfaces.GeofenceRepository, schedules ScheduleEvaluator, log *logger.Logger) GeofenceEvaluator {
	return &geofenceEvaluator{
		geofenceRepo: geofenceRepo,
		schedules:    schedules,
		logger:       log.WithComponent("geofence_evaluator"),
	}
}

func (e *geofenceEvaluator) Evaluate(ctx context.Context, sessionID, userID primitive.ObjectID, current models.Coordinate, previous *models.Coordinate, now time.Time) ([]TransitionCandidate, error) {
	geofences, err := e.geofenceRepo.ListActiveGeofences(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active geofences: %w", err)
	}

	var candidates []TransitionCandidate
	for _, geofence := range geofences {
		if !geofence.Active {
			continue
		}
		if !e.schedules.IsActiveNow(geofence.Schedule, now) {
			continue
		}

		isInside, valid := geofence.Contains(current)
		if !valid {
			e.logInvalidGeometry(geofence)
			continue
		}

		wasInside := false
		if previous != nil {
			wasInside, _ = geofence.Contains(*previous)
		}

		rule := geofence.RuleFor(userID)

		switch {
		case isInside && !wasInside:
			candidates = append(candidates, newCandidate(geofence, models.GeofenceEventEntry, geofence.AlertOnEntry || (rule != nil && rule.AlertOnEntry), rule))
		case !isInside && wasInside:
			candidates = append(candidates, newCandidate(geofence, models.GeofenceEventExit, geofence.AlertOnExit || (rule != nil && rule.AlertOnExit), rule))
		}

		if isInside && geofence.IsRestricted() {
			candidates = append(candidates, newCandidate(geofence, models.GeofenceEventViolation, true, rule))
		}
	}

	return candidates, nil
}

func newCandidate(geofence *models.Geofence, eventType models.GeofenceEventType, shouldAlert bool, rule *models.GeofenceRule) TransitionCandidate {
	candidate := TransitionCandidate{
		Geofence:    geofence,
		EventType:   eventType,
		ShouldAlert: shouldAlert,
	}
	if rule != nil {
		candidate.CustomMessage = rule.CustomMessage
		candidate.Priority = rule.Priority
	}
	return candidate
}

func (e *geofenceEvaluator) logInvalidGeometry(geofence *models.Geofence) {
	log := e.logger.WithGeofenceID(geofence.ID).WithFields(map[string]interface{}{
		"shape":    geofence.Shape,
		"vertices": len(geofence.Vertices),
		"radius_m": geofence.RadiusMeters,
	})
	if bounds := utils.CalculateBounds(geofence.Polygon()); bounds != nil {
		log = log.WithField("bounds", bounds.Southwest.String()+" "+bounds.Northeast.String())
	}
	log.Warn("Geofence has invalid geometry, treating as non-containing")
}
