package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/internal/utils"
	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidLocation          = errors.New("invalid location update")
	ErrEventAlreadyAcknowledged = interfaces.ErrAlreadyAcknowledged
)

// ProcessResult summarizes what one update did.
type ProcessResult struct {
	// Duplicate is set when the update repeats the latest stored sample.
	Duplicate bool `json:"duplicate"`
	// Evaluated is false for duplicates and for samples older than the
	// latest stored one.
	Evaluated bool                    `json:"evaluated"`
	Events    []*models.GeofenceEvent `json:"events"`
}

type LocationService interface {
	ProcessLocationUpdate(ctx context.Context, update *models.LocationUpdate) (*ProcessResult, error)
	ListEvents(ctx context.Context, sessionID primitive.ObjectID, filter models.EventFilter, params *utils.PaginationParams) ([]*models.GeofenceEvent, int64, error)
	AcknowledgeEvent(ctx context.Context, eventID, userID primitive.ObjectID) (*models.GeofenceEvent, error)
	// Wait blocks until every in-flight alert dispatch has finished.
	Wait()
}

type locationService struct {
	locationRepo    interfaces.LocationRepository
	eventRepo       interfaces.GeofenceEventRepository
	evaluator       GeofenceEvaluator
	recorder        EventRecorder
	dispatcher      AlertDispatcher
	locker          Locker
	dispatchTimeout time.Duration
	logger          *logger.Logger
	now             func() time.Time
	dispatches      sync.WaitGroup
}

func NewLocationService(
	locationRepo interfaces.LocationRepository,
	eventRepo interfaces.GeofenceEventRepository,
	evaluator GeofenceEvaluator,
	recorder EventRecorder,
	dispatcher AlertDispatcher,
	locker Locker,
	dispatchTimeout time.Duration,
	log *logger.Logger,
) LocationService {
	if dispatchTimeout <= 0 {
		dispatchTimeout = utils.DefaultDispatchTimeout
	}
	return &locationService{
		locationRepo:    locationRepo,
		eventRepo:       eventRepo,
		evaluator:       evaluator,
		recorder:        recorder,
		dispatcher:      dispatcher,
		locker:          locker,
		dispatchTimeout: dispatchTimeout,
		logger:          log.WithComponent("location_service"),
		now:             time.Now,
	}
}

func (s *locationService) ProcessLocationUpdate(ctx context.Context, update *models.LocationUpdate) (*ProcessResult, error) {
	if err := validateUpdate(update); err != nil {
		return nil, err
	}
	if update.Timestamp.IsZero() {
		update.Timestamp = s.now().UTC()
	}

	result, requests, err := s.processLocked(ctx, update)
	if err != nil {
		return nil, err
	}

	for _, req := range requests {
		s.dispatchAsync(ctx, req)
	}
	return result, nil
}

func (s *locationService) processLocked(ctx context.Context, update *models.LocationUpdate) (*ProcessResult, []*DispatchRequest, error) {
	release, err := s.locker.Acquire(ctx, locationLockKey(update.SessionID, update.UserID))
	if err != nil {
		return nil, nil, err
	}
	defer release()

	log := s.logger.WithContext(ctx).WithSessionID(update.SessionID).WithUserID(update.UserID)

	previous, err := s.locationRepo.GetLatestLocation(ctx, update.SessionID, update.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest location: %w", err)
	}

	if previous != nil && previous.SameReading(update) {
		log.Debug("Duplicate location update, skipping")
		return &ProcessResult{Duplicate: true}, nil, nil
	}

	result := &ProcessResult{}
	var requests []*DispatchRequest

	if previous != nil && update.Timestamp.Before(previous.Timestamp) {
		log.WithField("latest", utils.FormatTimeISO(previous.Timestamp)).Info("Out-of-order location update stored without evaluation")
	} else {
		var previousLocation *models.Coordinate
		if previous != nil {
			previousLocation = &previous.Location
		}

		candidates, err := s.evaluator.Evaluate(ctx, update.SessionID, update.UserID, update.Location, previousLocation, update.Timestamp)
		if err != nil {
			return nil, nil, err
		}

		obs := &Observation{
			SessionID: update.SessionID,
			UserID:    update.UserID,
			Location:  update.Location,
			Accuracy:  update.Accuracy,
			Timestamp: update.Timestamp,
			Previous:  previous,
		}

		result.Evaluated = true
		for _, candidate := range candidates {
			event, err := s.recorder.Record(ctx, candidate, obs)
			if err != nil {
				return nil, nil, err
			}
			if event == nil {
				continue
			}
			result.Events = append(result.Events, event)
			if event.AlertSent {
				requests = append(requests, &DispatchRequest{
					Event:         event,
					Geofence:      candidate.Geofence,
					CustomMessage: candidate.CustomMessage,
					Priority:      candidate.Priority,
				})
			}
		}
	}

	sample := models.NewLocationSample(update)
	sample.CreatedAt = s.now().UTC()
	if err := s.locationRepo.SaveLocation(ctx, sample); err != nil {
		return nil, nil, fmt.Errorf("failed to save location: %w", err)
	}

	return result, requests, nil
}

// dispatchAsync detaches from the caller's cancellation so an alert survives
// the request that produced it.
func (s *locationService) dispatchAsync(ctx context.Context, req *DispatchRequest) {
	s.dispatches.Add(1)
	go func() {
		defer s.dispatches.Done()
		dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
		defer cancel()
		s.dispatcher.Dispatch(dispatchCtx, req)
	}()
}

func (s *locationService) Wait() {
	s.dispatches.Wait()
}

func (s *locationService) ListEvents(ctx context.Context, sessionID primitive.ObjectID, filter models.EventFilter, params *utils.PaginationParams) ([]*models.GeofenceEvent, int64, error) {
	events, total, err := s.eventRepo.ListBySession(ctx, sessionID, filter, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	return events, total, nil
}

func (s *locationService) AcknowledgeEvent(ctx context.Context, eventID, userID primitive.ObjectID) (*models.GeofenceEvent, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Acknowledged {
		return event, ErrEventAlreadyAcknowledged
	}

	at := s.now().UTC()
	if err := s.eventRepo.Acknowledge(ctx, eventID, userID, at); err != nil {
		if errors.Is(err, interfaces.ErrAlreadyAcknowledged) || errors.Is(err, interfaces.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to acknowledge event: %w", err)
	}

	event.Acknowledged = true
	event.AcknowledgedBy = &userID
	event.AcknowledgedAt = &at
	return event, nil
}

func validateUpdate(update *models.LocationUpdate) error {
	if update == nil {
		return fmt.Errorf("%w: missing update", ErrInvalidLocation)
	}
	if update.SessionID.IsZero() {
		return fmt.Errorf("%w: missing session_id", ErrInvalidLocation)
	}
	if update.UserID.IsZero() {
		return fmt.Errorf("%w: missing user_id", ErrInvalidLocation)
	}
	if !update.Location.IsValid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidLocation)
	}
	if update.Accuracy != nil && (math.IsNaN(*update.Accuracy) || *update.Accuracy < 0) {
		return fmt.Errorf("%w: negative accuracy", ErrInvalidLocation)
	}
	return nil
}
