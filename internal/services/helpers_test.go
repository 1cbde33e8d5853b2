package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"geowatch/internal/config"
	"geowatch/internal/models"
	"geowatch/internal/repositories/memory"
	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Monday, 1 January 2024, 12:00 UTC.
var baseTime = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	service   *locationService
	publisher *recordingPublisher
	sessionID primitive.ObjectID
	alice     primitive.ObjectID
	bob       primitive.ObjectID
	carol     primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     memory.NewStore(),
		publisher: &recordingPublisher{},
		sessionID: primitive.NewObjectID(),
		alice:     primitive.NewObjectID(),
		bob:       primitive.NewObjectID(),
		carol:     primitive.NewObjectID(),
	}
	f.store.AddSession(f.sessionID,
		&models.Participant{UserID: f.alice, Name: "Alice"},
		&models.Participant{UserID: f.bob, Name: "Bob"},
		&models.Participant{UserID: f.carol, Name: "Carol"},
	)

	log := logger.Discard()
	locker := NewKeyedMutex()
	schedules := NewScheduleEvaluator(config.TimezoneModeEvaluator, time.UTC, log)
	evaluator := NewGeofenceEvaluator(f.store, schedules, log)
	recorder := NewEventRecorder(f.store, locker, 5*time.Minute, log)
	dispatcher := NewAlertDispatcher(f.store, f.store, []AlertPublisher{f.publisher}, log)

	f.service = NewLocationService(f.store, f.store, evaluator, recorder, dispatcher, locker, time.Second, log).(*locationService)
	f.service.now = func() time.Time { return baseTime }
	return f
}

func (f *fixture) process(t *testing.T, userID primitive.ObjectID, loc models.Coordinate, at time.Time) *ProcessResult {
	t.Helper()
	result, err := f.service.ProcessLocationUpdate(context.Background(), &models.LocationUpdate{
		SessionID: f.sessionID,
		UserID:    userID,
		Location:  loc,
		Timestamp: at,
	})
	if err != nil {
		t.Fatalf("ProcessLocationUpdate: %v", err)
	}
	f.service.Wait()
	return result
}

func (f *fixture) eventsOfType(eventType models.GeofenceEventType) []*models.GeofenceEvent {
	var events []*models.GeofenceEvent
	for _, e := range f.store.Events() {
		if e.EventType == eventType {
			events = append(events, e)
		}
	}
	return events
}

func circleGeofence(sessionID primitive.ObjectID, name string, geofenceType models.GeofenceType, center models.Coordinate, radius float64) *models.Geofence {
	return &models.Geofence{
		SessionID:    sessionID,
		Name:         name,
		Type:         geofenceType,
		Shape:        models.GeofenceShapeCircle,
		Center:       &center,
		RadiusMeters: radius,
		Active:       true,
	}
}

// squareGeofence spans lat 40.000..40.010 and lng -74.010..-74.000.
func squareGeofence(sessionID primitive.ObjectID, name string, geofenceType models.GeofenceType) *models.Geofence {
	return &models.Geofence{
		SessionID: sessionID,
		Name:      name,
		Type:      geofenceType,
		Shape:     models.GeofenceShapePolygon,
		Vertices: []models.Coordinate{
			{Lat: 40.000, Lng: -74.010},
			{Lat: 40.010, Lng: -74.010},
			{Lat: 40.010, Lng: -74.000},
			{Lat: 40.000, Lng: -74.000},
		},
		Active: true,
	}
}

var (
	insideSquare  = models.Coordinate{Lat: 40.005, Lng: -74.005}
	outsideSquare = models.Coordinate{Lat: 40.050, Lng: -74.050}
)

type recordingPublisher struct {
	mu     sync.Mutex
	alerts []*models.Alert
	err    error
}

func (p *recordingPublisher) PublishAlert(_ context.Context, alert *models.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
	return p.err
}

func (p *recordingPublisher) published() []*models.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.Alert(nil), p.alerts...)
}

type failingAlertRepo struct {
	*memory.Store
}

func (f *failingAlertRepo) CreateAlert(context.Context, *models.Alert) error {
	return errors.New("alerts collection unavailable")
}

func (f *failingAlertRepo) CreateSystemMessage(context.Context, *models.Message) error {
	return errors.New("messages collection unavailable")
}

type failingGeofenceRepo struct{}

func (failingGeofenceRepo) ListActiveGeofences(context.Context, primitive.ObjectID) ([]*models.Geofence, error) {
	return nil, errors.New("connection reset")
}
