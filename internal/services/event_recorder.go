package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/internal/utils"
	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Observation is the sample a candidate was derived from.
type Observation struct {
	SessionID primitive.ObjectID
	UserID    primitive.ObjectID
	Location  models.Coordinate
	Accuracy  *float64
	Timestamp time.Time
	Previous  *models.LocationSample
}

type EventRecorder interface {
	// Record persists the candidate. It returns a nil event when nothing was
	// stored: a violation inside the cooldown, or a session that no longer
	// exists.
	Record(ctx context.Context, candidate TransitionCandidate, obs *Observation) (*models.GeofenceEvent, error)
}

type eventRecorder struct {
	eventRepo interfaces.GeofenceEventRepository
	locker    Locker
	cooldown  time.Duration
	logger    *logger.Logger
}

func NewEventRecorder(eventRepo interfaces.GeofenceEventRepository, locker Locker, cooldown time.Duration, log *logger.Logger) EventRecorder {
	return &eventRecorder{
		eventRepo: eventRepo,
		locker:    locker,
		cooldown:  cooldown,
		logger:    log.WithComponent("event_recorder"),
	}
}

func (r *eventRecorder) Record(ctx context.Context, candidate TransitionCandidate, obs *Observation) (*models.GeofenceEvent, error) {
	event := &models.GeofenceEvent{
		GeofenceID: candidate.Geofence.ID,
		SessionID:  obs.SessionID,
		UserID:     obs.UserID,
		EventType:  candidate.EventType,
		Timestamp:  obs.Timestamp,
		Location:   obs.Location,
		AlertSent:  candidate.ShouldAlert,
		Metadata:   movementMetadata(obs),
	}

	switch candidate.EventType {
	case models.GeofenceEventViolation:
		return r.recordViolation(ctx, event)
	case models.GeofenceEventExit:
		if err := r.attachDuration(ctx, event); err != nil {
			return nil, err
		}
	}

	return r.insert(ctx, event)
}

func (r *eventRecorder) recordViolation(ctx context.Context, event *models.GeofenceEvent) (*models.GeofenceEvent, error) {
	release, err := r.locker.Acquire(ctx, violationLockKey(event.UserID, event.GeofenceID))
	if err != nil {
		return nil, err
	}
	defer release()

	last, err := r.eventRepo.GetLastEvent(ctx, event.UserID, event.GeofenceID, models.GeofenceEventViolation)
	if err != nil {
		return nil, fmt.Errorf("failed to get last violation: %w", err)
	}
	if last != nil && event.Timestamp.Sub(last.Timestamp) < r.cooldown {
		r.logger.WithUserID(event.UserID).WithGeofenceID(event.GeofenceID).
			WithField("last_violation_id", last.ID.Hex()).
			Debug("Violation within cooldown, skipping")
		return nil, nil
	}

	event.AlertSent = true
	return r.insert(ctx, event)
}

func (r *eventRecorder) attachDuration(ctx context.Context, event *models.GeofenceEvent) error {
	entry, err := r.eventRepo.GetLastEvent(ctx, event.UserID, event.GeofenceID, models.GeofenceEventEntry)
	if err != nil {
		return fmt.Errorf("failed to get last entry: %w", err)
	}
	if entry == nil {
		return nil
	}

	durationMs := event.Timestamp.Sub(entry.Timestamp).Milliseconds()
	if event.Metadata == nil {
		event.Metadata = &models.EventMetadata{}
	}
	event.Metadata.DurationMs = &durationMs
	return nil
}

func (r *eventRecorder) insert(ctx context.Context, event *models.GeofenceEvent) (*models.GeofenceEvent, error) {
	id, err := r.eventRepo.InsertEvent(ctx, event)
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			r.logger.WithSessionID(event.SessionID).WithGeofenceID(event.GeofenceID).
				WithField("event_type", event.EventType).
				Warn("Session no longer exists, event not recorded")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to insert %s event: %w", event.EventType, err)
	}
	event.ID = id

	r.logger.LogGeofenceEvent(event.ID, event.GeofenceID, event.UserID, string(event.EventType), event.AlertSent)
	return event, nil
}

func movementMetadata(obs *Observation) *models.EventMetadata {
	metadata := &models.EventMetadata{Accuracy: obs.Accuracy}

	if obs.Previous != nil {
		prev := obs.Previous.Location
		distance := utils.CalculateDistance(prev.Lat, prev.Lng, obs.Location.Lat, obs.Location.Lng)
		metadata.DistanceMeters = &distance

		if speed, ok := utils.CalculateSpeed(distance, obs.Timestamp.Sub(obs.Previous.Timestamp).Seconds()); ok {
			metadata.Speed = &speed
		}
	}

	if metadata.IsEmpty() {
		return nil
	}
	return metadata
}
