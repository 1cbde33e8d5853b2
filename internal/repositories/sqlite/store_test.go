package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/internal/utils"
	"geowatch/pkg/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var baseTime = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, primitive.ObjectID) {
	t.Helper()

	db, err := database.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "geowatch.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	sessionID := primitive.NewObjectID()
	if err := store.CreateSession(context.Background(), sessionID, "field trip"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return store, sessionID
}

func TestStore_GeofencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, sessionID := newTestStore(t)

	active := &models.Geofence{
		SessionID:    sessionID,
		Name:         "camp",
		Type:         models.GeofenceTypeSafeZone,
		Shape:        models.GeofenceShapeCircle,
		Center:       &models.Coordinate{Lat: 10, Lng: 20},
		RadiusMeters: 150,
		AlertOnExit:  true,
		Schedule:     &models.Schedule{Enabled: true, StartTime: "08:00", EndTime: "18:00", Days: []string{"monday"}},
		Active:       true,
	}
	inactive := &models.Geofence{SessionID: sessionID, Name: "old", Shape: models.GeofenceShapeCircle, Active: false}
	for _, g := range []*models.Geofence{active, inactive} {
		if err := store.SaveGeofence(ctx, g); err != nil {
			t.Fatalf("SaveGeofence: %v", err)
		}
	}

	got, err := store.ListActiveGeofences(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListActiveGeofences: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d active geofences, want 1", len(got))
	}
	if got[0].ID != active.ID || got[0].RadiusMeters != 150 || got[0].Schedule == nil || got[0].Schedule.StartTime != "08:00" {
		t.Errorf("unexpected geofence: %+v", got[0])
	}

	active.Active = false
	if err := store.SaveGeofence(ctx, active); err != nil {
		t.Fatalf("SaveGeofence update: %v", err)
	}
	got, err = store.ListActiveGeofences(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListActiveGeofences: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d active geofences after deactivation, want 0", len(got))
	}
}

func TestStore_LatestLocation(t *testing.T) {
	ctx := context.Background()
	store, sessionID := newTestStore(t)
	userID := primitive.NewObjectID()

	latest, err := store.GetLatestLocation(ctx, sessionID, userID)
	if err != nil || latest != nil {
		t.Fatalf("GetLatestLocation on empty store = %v, %v; want nil, nil", latest, err)
	}

	accuracy := 4.5
	samples := []*models.LocationSample{
		{SessionID: sessionID, UserID: userID, Location: models.Coordinate{Lat: 1, Lng: 1}, Timestamp: baseTime.Add(time.Minute), Accuracy: &accuracy},
		{SessionID: sessionID, UserID: userID, Location: models.Coordinate{Lat: 2, Lng: 2}, Timestamp: baseTime},
	}
	for _, s := range samples {
		if err := store.SaveLocation(ctx, s); err != nil {
			t.Fatalf("SaveLocation: %v", err)
		}
	}

	latest, err = store.GetLatestLocation(ctx, sessionID, userID)
	if err != nil {
		t.Fatalf("GetLatestLocation: %v", err)
	}
	if latest.Location.Lat != 1 || !latest.Timestamp.Equal(baseTime.Add(time.Minute)) {
		t.Errorf("latest = %+v, want the sample with the newest timestamp", latest)
	}
	if latest.Accuracy == nil || *latest.Accuracy != accuracy {
		t.Errorf("accuracy = %v, want %v", latest.Accuracy, accuracy)
	}
}

func TestStore_Events(t *testing.T) {
	ctx := context.Background()
	store, sessionID := newTestStore(t)
	userID, geofenceID := primitive.NewObjectID(), primitive.NewObjectID()
	distance := 42.0

	last, err := store.GetLastEvent(ctx, userID, geofenceID, models.GeofenceEventEntry)
	if err != nil || last != nil {
		t.Fatalf("GetLastEvent on empty store = %v, %v; want nil, nil", last, err)
	}

	var ids []primitive.ObjectID
	for i, eventType := range []models.GeofenceEventType{models.GeofenceEventEntry, models.GeofenceEventExit, models.GeofenceEventEntry} {
		id, err := store.InsertEvent(ctx, &models.GeofenceEvent{
			GeofenceID: geofenceID,
			SessionID:  sessionID,
			UserID:     userID,
			EventType:  eventType,
			Timestamp:  baseTime.Add(time.Duration(i) * time.Minute),
			Location:   models.Coordinate{Lat: 1, Lng: 2},
			AlertSent:  true,
			Metadata:   &models.EventMetadata{DistanceMeters: &distance},
		})
		if err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
		ids = append(ids, id)
	}

	last, err = store.GetLastEvent(ctx, userID, geofenceID, models.GeofenceEventEntry)
	if err != nil {
		t.Fatalf("GetLastEvent: %v", err)
	}
	if last.ID != ids[2] {
		t.Errorf("GetLastEvent returned %s, want %s", last.ID.Hex(), ids[2].Hex())
	}
	if last.Metadata == nil || last.Metadata.DistanceMeters == nil || *last.Metadata.DistanceMeters != distance {
		t.Errorf("metadata not round-tripped: %+v", last.Metadata)
	}

	events, total, err := store.ListBySession(ctx, sessionID, models.EventFilter{}, &utils.PaginationParams{Page: 1, PageSize: 2, Order: "desc"})
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if total != 3 || len(events) != 2 {
		t.Fatalf("ListBySession = %d events of %d, want 2 of 3", len(events), total)
	}
	if events[0].ID != ids[2] || events[1].ID != ids[1] {
		t.Errorf("events not newest first")
	}

	entries, total, err := store.ListBySession(ctx, sessionID,
		models.EventFilter{EventType: models.GeofenceEventEntry, UserID: userID},
		utils.NewPaginationParams(1, 10, "timestamp", "asc"))
	if err != nil {
		t.Fatalf("ListBySession filtered: %v", err)
	}
	if total != 2 || len(entries) != 2 || entries[0].ID != ids[0] || entries[1].ID != ids[2] {
		t.Errorf("entry listing = %d of %d, want ids[0], ids[2]", len(entries), total)
	}

	// An unknown sort column falls back to timestamp instead of reaching SQL.
	if _, _, err := store.ListBySession(ctx, sessionID, models.EventFilter{},
		utils.NewPaginationParams(1, 10, "timestamp; DROP TABLE geofence_events", "desc")); err != nil {
		t.Errorf("ListBySession with unknown sort: %v", err)
	}

	ackBy := primitive.NewObjectID()
	if err := store.Acknowledge(ctx, ids[0], ackBy, baseTime.Add(time.Hour)); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	acked, err := store.GetByID(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !acked.Acknowledged || acked.AcknowledgedBy == nil || *acked.AcknowledgedBy != ackBy {
		t.Errorf("acknowledgement not stored: %+v", acked)
	}
	if acked.AcknowledgedAt == nil || !acked.AcknowledgedAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("acknowledged_at = %v", acked.AcknowledgedAt)
	}

	if err := store.Acknowledge(ctx, ids[0], primitive.NewObjectID(), baseTime.Add(2*time.Hour)); !errors.Is(err, interfaces.ErrAlreadyAcknowledged) {
		t.Errorf("second Acknowledge error = %v, want ErrAlreadyAcknowledged", err)
	}
	if again, _ := store.GetByID(ctx, ids[0]); again == nil || *again.AcknowledgedBy != ackBy {
		t.Errorf("second acknowledgement overwrote acknowledged_by: %+v", again)
	}

	if err := store.Acknowledge(ctx, primitive.NewObjectID(), ackBy, baseTime); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("Acknowledge unknown event error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("GetByID unknown event error = %v, want ErrNotFound", err)
	}
}

func TestStore_InsertEventAfterSessionDeleted(t *testing.T) {
	ctx := context.Background()
	store, sessionID := newTestStore(t)

	event := &models.GeofenceEvent{
		GeofenceID: primitive.NewObjectID(),
		SessionID:  sessionID,
		UserID:     primitive.NewObjectID(),
		EventType:  models.GeofenceEventEntry,
		Timestamp:  baseTime,
	}
	if _, err := store.InsertEvent(ctx, event); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	if err := store.DeleteSession(ctx, sessionID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	events, total, err := store.ListBySession(ctx, sessionID, models.EventFilter{}, &utils.PaginationParams{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if total != 0 || len(events) != 0 {
		t.Errorf("events survived session delete: %d", total)
	}

	event.ID = primitive.NilObjectID
	if _, err := store.InsertEvent(ctx, event); !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("InsertEvent after delete error = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_AlertsAndParticipants(t *testing.T) {
	ctx := context.Background()
	store, sessionID := newTestStore(t)

	alice := &models.Participant{SessionID: sessionID, UserID: primitive.NewObjectID(), Name: "Alice"}
	bob := &models.Participant{SessionID: sessionID, UserID: primitive.NewObjectID()}
	for _, p := range []*models.Participant{alice, bob} {
		if err := store.AddParticipant(ctx, p); err != nil {
			t.Fatalf("AddParticipant: %v", err)
		}
	}
	participants, err := store.ListParticipants(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(participants) != 2 || participants[0].Name != "Alice" || participants[1].UserID != bob.UserID {
		t.Errorf("unexpected participants: %+v", participants)
	}

	alert := &models.Alert{SessionID: sessionID, Message: "Alice left camp"}
	if err := store.CreateAlert(ctx, alert); err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if alert.ID.IsZero() {
		t.Fatal("CreateAlert did not assign an id")
	}
	alerts, err := store.Alerts(ctx, sessionID)
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Message != "Alice left camp" {
		t.Errorf("unexpected alerts: %+v", alerts)
	}

	notifications := []*models.Notification{
		{UserID: alice.UserID, Title: "Geofence Alert"},
		{UserID: bob.UserID, Title: "Geofence Alert"},
	}
	if err := store.CreateNotifications(ctx, notifications); err != nil {
		t.Fatalf("CreateNotifications: %v", err)
	}
	for _, n := range notifications {
		if n.ID.IsZero() {
			t.Error("notification id not assigned")
		}
	}
}
