package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/memory"
	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEventRecorder_ExitWithoutEntryHasNoDuration(t *testing.T) {
	store := memory.NewStore()
	sessionID := primitive.NewObjectID()
	store.AddSession(sessionID)
	zone := store.AddGeofence(squareGeofence(sessionID, "Park", models.GeofenceTypeAlertZone))

	recorder := NewEventRecorder(store, NewKeyedMutex(), 5*time.Minute, logger.Discard())
	event, err := recorder.Record(context.Background(),
		TransitionCandidate{Geofence: zone, EventType: models.GeofenceEventExit},
		&Observation{SessionID: sessionID, UserID: primitive.NewObjectID(), Location: outsideSquare, Timestamp: baseTime},
	)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if event == nil {
		t.Fatal("exit was not recorded")
	}
	if event.Metadata != nil && event.Metadata.DurationMs != nil {
		t.Errorf("duration = %d, want absent", *event.Metadata.DurationMs)
	}
}

func TestEventRecorder_CooldownBoundary(t *testing.T) {
	tests := []struct {
		name string
		gap  time.Duration
		want int
	}{
		{"just inside cooldown", 5*time.Minute - time.Second, 1},
		{"exactly at cooldown", 5 * time.Minute, 2},
		{"earlier than last violation", -time.Minute, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			sessionID := primitive.NewObjectID()
			userID := primitive.NewObjectID()
			store.AddSession(sessionID)
			zone := store.AddGeofence(squareGeofence(sessionID, "Quarry", models.GeofenceTypeRestrictedZone))
			recorder := NewEventRecorder(store, NewKeyedMutex(), 5*time.Minute, logger.Discard())

			candidate := TransitionCandidate{Geofence: zone, EventType: models.GeofenceEventViolation, ShouldAlert: true}
			for _, ts := range []time.Time{baseTime, baseTime.Add(tt.gap)} {
				obs := &Observation{SessionID: sessionID, UserID: userID, Location: insideSquare, Timestamp: ts}
				if _, err := recorder.Record(context.Background(), candidate, obs); err != nil {
					t.Fatalf("Record: %v", err)
				}
			}

			if n := len(store.Events()); n != tt.want {
				t.Errorf("violations = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestEventRecorder_ConcurrentViolationsAreSerialized(t *testing.T) {
	store := memory.NewStore()
	sessionID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	store.AddSession(sessionID)
	zone := store.AddGeofence(squareGeofence(sessionID, "Quarry", models.GeofenceTypeRestrictedZone))
	recorder := NewEventRecorder(store, NewKeyedMutex(), 5*time.Minute, logger.Discard())

	candidate := TransitionCandidate{Geofence: zone, EventType: models.GeofenceEventViolation, ShouldAlert: true}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			obs := &Observation{SessionID: sessionID, UserID: userID, Location: insideSquare, Timestamp: baseTime.Add(time.Duration(i) * time.Second)}
			if _, err := recorder.Record(context.Background(), candidate, obs); err != nil {
				t.Errorf("Record: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n := len(store.Events()); n != 1 {
		t.Errorf("violations = %d, want 1", n)
	}
}

func TestEventRecorder_MetadataFromPreviousSample(t *testing.T) {
	store := memory.NewStore()
	sessionID := primitive.NewObjectID()
	store.AddSession(sessionID)
	zone := store.AddGeofence(squareGeofence(sessionID, "Park", models.GeofenceTypeAlertZone))
	recorder := NewEventRecorder(store, NewKeyedMutex(), 5*time.Minute, logger.Discard())

	accuracy := 12.5
	previous := &models.LocationSample{Location: insideSquare, Timestamp: baseTime}
	event, err := recorder.Record(context.Background(),
		TransitionCandidate{Geofence: zone, EventType: models.GeofenceEventEntry},
		&Observation{SessionID: sessionID, UserID: primitive.NewObjectID(), Location: insideSquare, Accuracy: &accuracy, Timestamp: baseTime, Previous: previous},
	)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	m := event.Metadata
	if m == nil || m.Accuracy == nil || *m.Accuracy != accuracy {
		t.Fatalf("metadata = %+v, want accuracy %v", m, accuracy)
	}
	if m.DistanceMeters == nil || *m.DistanceMeters != 0 {
		t.Errorf("distance = %v, want 0", m.DistanceMeters)
	}
	if m.Speed != nil {
		t.Errorf("speed = %v, want absent for zero elapsed time", *m.Speed)
	}
}
