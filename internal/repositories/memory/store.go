// Package memory is an in-process implementation of every repository
// contract. It backs tests and single-node development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu            sync.RWMutex
	sessions      map[primitive.ObjectID][]*models.Participant
	geofences     []*models.Geofence
	locations     []*models.LocationSample
	events        []*models.GeofenceEvent
	alerts        []*models.Alert
	messages      []*models.Message
	notifications []*models.Notification
}

var (
	_ interfaces.GeofenceRepository      = (*Store)(nil)
	_ interfaces.LocationRepository      = (*Store)(nil)
	_ interfaces.GeofenceEventRepository = (*Store)(nil)
	_ interfaces.AlertRepository         = (*Store)(nil)
	_ interfaces.SessionRepository       = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{sessions: make(map[primitive.ObjectID][]*models.Participant)}
}

func (s *Store) AddSession(sessionID primitive.ObjectID, participants ...*models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range participants {
		p.SessionID = sessionID
	}
	s.sessions[sessionID] = append(s.sessions[sessionID], participants...)
}

// DeleteSession removes the session so later event writes are rejected.
func (s *Store) DeleteSession(sessionID primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *Store) AddGeofence(geofence *models.Geofence) *models.Geofence {
	s.mu.Lock()
	defer s.mu.Unlock()
	if geofence.ID.IsZero() {
		geofence.ID = primitive.NewObjectID()
	}
	s.geofences = append(s.geofences, geofence)
	return geofence
}

func (s *Store) ListActiveGeofences(_ context.Context, sessionID primitive.ObjectID) ([]*models.Geofence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Geofence
	for _, g := range s.geofences {
		if g.SessionID == sessionID && g.Active {
			copied := *g
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *Store) GetLatestLocation(_ context.Context, sessionID, userID primitive.ObjectID) (*models.LocationSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.LocationSample
	for _, l := range s.locations {
		if l.SessionID != sessionID || l.UserID != userID {
			continue
		}
		if latest == nil || !l.Timestamp.Before(latest.Timestamp) {
			latest = l
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *Store) SaveLocation(_ context.Context, sample *models.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sample.ID.IsZero() {
		sample.ID = primitive.NewObjectID()
	}
	copied := *sample
	s.locations = append(s.locations, &copied)
	return nil
}

func (s *Store) GetLastEvent(_ context.Context, userID, geofenceID primitive.ObjectID, eventType models.GeofenceEventType) (*models.GeofenceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.GeofenceEvent
	for _, e := range s.events {
		if e.UserID != userID || e.GeofenceID != geofenceID || e.EventType != eventType {
			continue
		}
		if last == nil || !e.Timestamp.Before(last.Timestamp) {
			last = e
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

func (s *Store) InsertEvent(_ context.Context, event *models.GeofenceEvent) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[event.SessionID]; !ok {
		return primitive.NilObjectID, interfaces.ErrSessionNotFound
	}

	copied := *event
	if copied.ID.IsZero() {
		copied.ID = primitive.NewObjectID()
	}
	s.events = append(s.events, &copied)
	return copied.ID, nil
}

func (s *Store) GetByID(_ context.Context, id primitive.ObjectID) (*models.GeofenceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (s *Store) ListBySession(_ context.Context, sessionID primitive.ObjectID, filter models.EventFilter, params *utils.PaginationParams) ([]*models.GeofenceEvent, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.GeofenceEvent
	for _, e := range s.events {
		if e.SessionID == sessionID && filter.Matches(e) {
			copied := *e
			matched = append(matched, &copied)
		}
	}

	total := int64(len(matched))
	if params == nil {
		return matched, total, nil
	}

	key := eventSortKey(params.SortField("timestamp", models.EventSortFields...))
	descending := params.Descending()
	sort.SliceStable(matched, func(i, j int) bool {
		if descending {
			return key(matched[j]) < key(matched[i])
		}
		return key(matched[i]) < key(matched[j])
	})

	start := params.GetSkip()
	if start >= len(matched) {
		return []*models.GeofenceEvent{}, total, nil
	}
	end := start + params.GetLimit()
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// eventSortKey orders by field, then by timestamp. Timestamps are formatted
// so that string order matches time order.
func eventSortKey(field string) func(*models.GeofenceEvent) string {
	stamp := func(e *models.GeofenceEvent) string {
		return e.Timestamp.UTC().Format("20060102150405.000000000")
	}
	switch field {
	case "event_type":
		return func(e *models.GeofenceEvent) string { return string(e.EventType) + "|" + stamp(e) }
	case "user_id":
		return func(e *models.GeofenceEvent) string { return e.UserID.Hex() + "|" + stamp(e) }
	case "geofence_id":
		return func(e *models.GeofenceEvent) string { return e.GeofenceID.Hex() + "|" + stamp(e) }
	default:
		return stamp
	}
}

func (s *Store) Acknowledge(_ context.Context, id, acknowledgedBy primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			if e.Acknowledged {
				return interfaces.ErrAlreadyAcknowledged
			}
			by := acknowledgedBy
			ackAt := at
			e.Acknowledged = true
			e.AcknowledgedBy = &by
			e.AcknowledgedAt = &ackAt
			return nil
		}
	}
	return interfaces.ErrNotFound
}

func (s *Store) CreateAlert(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert.ID.IsZero() {
		alert.ID = primitive.NewObjectID()
	}
	copied := *alert
	s.alerts = append(s.alerts, &copied)
	return nil
}

func (s *Store) CreateSystemMessage(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	copied := *message
	s.messages = append(s.messages, &copied)
	return nil
}

func (s *Store) CreateNotification(_ context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendNotification(notification)
	return nil
}

func (s *Store) CreateNotifications(_ context.Context, notifications []*models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notifications {
		s.appendNotification(n)
	}
	return nil
}

func (s *Store) appendNotification(notification *models.Notification) {
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	copied := *notification
	s.notifications = append(s.notifications, &copied)
}

func (s *Store) ListParticipants(_ context.Context, sessionID primitive.ObjectID) ([]*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants := make([]*models.Participant, 0, len(s.sessions[sessionID]))
	for _, p := range s.sessions[sessionID] {
		copied := *p
		participants = append(participants, &copied)
	}
	return participants, nil
}

func (s *Store) Events() []*models.GeofenceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.GeofenceEvent(nil), s.events...)
}

func (s *Store) Locations() []*models.LocationSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.LocationSample(nil), s.locations...)
}

func (s *Store) Alerts() []*models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Alert(nil), s.alerts...)
}

func (s *Store) Messages() []*models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Message(nil), s.messages...)
}

func (s *Store) Notifications() []*models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Notification(nil), s.notifications...)
}
