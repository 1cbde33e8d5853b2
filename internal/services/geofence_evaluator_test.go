package services

import (
	"context"
	"testing"
	"time"

	"geowatch/internal/config"
	"geowatch/internal/models"
	"geowatch/internal/repositories/memory"
	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestEvaluator(store *memory.Store) GeofenceEvaluator {
	log := logger.Discard()
	return NewGeofenceEvaluator(store, NewScheduleEvaluator(config.TimezoneModeEvaluator, time.UTC, log), log)
}

func TestGeofenceEvaluator_InvalidGeometryDoesNotAbortBatch(t *testing.T) {
	store := memory.NewStore()
	sessionID := primitive.NewObjectID()

	store.AddGeofence(&models.Geofence{
		SessionID: sessionID,
		Name:      "Degenerate",
		Type:      models.GeofenceTypeAlertZone,
		Shape:     models.GeofenceShapePolygon,
		Vertices:  []models.Coordinate{{Lat: 40, Lng: -74}, {Lat: 40.01, Lng: -74}},
		Active:    true,
	})
	store.AddGeofence(&models.Geofence{
		SessionID: sessionID,
		Name:      "No radius",
		Type:      models.GeofenceTypeAlertZone,
		Shape:     models.GeofenceShapeCircle,
		Center:    &insideSquare,
		Active:    true,
	})
	valid := store.AddGeofence(squareGeofence(sessionID, "Park", models.GeofenceTypeAlertZone))

	candidates, err := newTestEvaluator(store).Evaluate(context.Background(), sessionID, primitive.NewObjectID(), insideSquare, nil, baseTime)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Geofence.ID != valid.ID {
		t.Fatalf("candidates = %+v, want a single entry for the valid zone", candidates)
	}
}

func TestGeofenceEvaluator_InactiveGeofencesIgnored(t *testing.T) {
	store := memory.NewStore()
	sessionID := primitive.NewObjectID()
	zone := squareGeofence(sessionID, "Park", models.GeofenceTypeRestrictedZone)
	zone.Active = false
	store.AddGeofence(zone)

	candidates, err := newTestEvaluator(store).Evaluate(context.Background(), sessionID, primitive.NewObjectID(), insideSquare, nil, baseTime)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("got %d candidates for an inactive geofence", len(candidates))
	}
}

func TestGeofenceEvaluator_RulesOnlyAddAlerting(t *testing.T) {
	sessionID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	tests := []struct {
		name      string
		zoneAlert bool
		rule      *models.GeofenceRule
		want      bool
	}{
		{"zone off, no rule", false, nil, false},
		{"zone off, rule on", false, &models.GeofenceRule{UserID: userID, AlertOnEntry: true}, true},
		{"zone on, rule off", true, &models.GeofenceRule{UserID: userID, AlertOnEntry: false}, true},
		{"zone off, rule for someone else", false, &models.GeofenceRule{UserID: primitive.NewObjectID(), AlertOnEntry: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			zone := squareGeofence(sessionID, "Park", models.GeofenceTypeAlertZone)
			zone.AlertOnEntry = tt.zoneAlert
			if tt.rule != nil {
				zone.Rules = []models.GeofenceRule{*tt.rule}
			}
			store.AddGeofence(zone)

			candidates, err := newTestEvaluator(store).Evaluate(context.Background(), sessionID, userID, insideSquare, &outsideSquare, baseTime)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if len(candidates) != 1 {
				t.Fatalf("got %d candidates, want 1", len(candidates))
			}
			if candidates[0].ShouldAlert != tt.want {
				t.Errorf("ShouldAlert = %v, want %v", candidates[0].ShouldAlert, tt.want)
			}
		})
	}
}

func TestGeofenceEvaluator_RuleCarriesMessageAndPriority(t *testing.T) {
	store := memory.NewStore()
	sessionID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	zone := squareGeofence(sessionID, "Quarry", models.GeofenceTypeRestrictedZone)
	zone.Rules = []models.GeofenceRule{{
		UserID:        userID,
		AlertOnExit:   true,
		CustomMessage: "Sam left the quarry",
		Priority:      models.AlertPriorityHigh,
	}}
	store.AddGeofence(zone)

	candidates, err := newTestEvaluator(store).Evaluate(context.Background(), sessionID, userID, outsideSquare, &insideSquare, baseTime)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want exit only", len(candidates))
	}
	exit := candidates[0]
	if exit.EventType != models.GeofenceEventExit || !exit.ShouldAlert {
		t.Errorf("candidate = %+v", exit)
	}
	if exit.CustomMessage != "Sam left the quarry" || exit.Priority != models.AlertPriorityHigh {
		t.Errorf("rule overrides not carried: %+v", exit)
	}
}

func TestGeofenceEvaluator_SamePairIsNotIdempotent(t *testing.T) {
	store := memory.NewStore()
	sessionID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	store.AddSession(sessionID)
	store.AddGeofence(squareGeofence(sessionID, "Park", models.GeofenceTypeAlertZone))

	log := logger.Discard()
	evaluator := newTestEvaluator(store)
	recorder := NewEventRecorder(store, NewKeyedMutex(), 5*time.Minute, log)
	obs := &Observation{SessionID: sessionID, UserID: userID, Location: insideSquare, Timestamp: baseTime}

	for i := 0; i < 2; i++ {
		candidates, err := evaluator.Evaluate(context.Background(), sessionID, userID, insideSquare, &outsideSquare, baseTime)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		for _, c := range candidates {
			if _, err := recorder.Record(context.Background(), c, obs); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}
	}

	if n := len(store.Events()); n != 2 {
		t.Errorf("re-evaluating the same pair stored %d entries, want 2", n)
	}
}

func TestGeofenceEvaluator_RepositoryErrorIsReturned(t *testing.T) {
	log := logger.Discard()
	evaluator := NewGeofenceEvaluator(failingGeofenceRepo{}, NewScheduleEvaluator(config.TimezoneModeEvaluator, time.UTC, log), log)

	if _, err := evaluator.Evaluate(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), insideSquare, nil, baseTime); err == nil {
		t.Fatal("expected error")
	}
}
