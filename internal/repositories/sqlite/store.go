// Package sqlite implements the repository contracts on an embedded SQLite
// database for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/pkg/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *database.SQLite
}

var (
	_ interfaces.GeofenceRepository      = (*Store)(nil)
	_ interfaces.LocationRepository      = (*Store)(nil)
	_ interfaces.GeofenceEventRepository = (*Store)(nil)
	_ interfaces.AlertRepository         = (*Store)(nil)
	_ interfaces.SessionRepository       = (*Store)(nil)
)

func NewStore(db *database.SQLite) *Store {
	return &Store{db: db}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}

func parseID(value string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("corrupt object id %q: %w", value, err)
	}
	return id, nil
}

func (s *Store) CreateSession(ctx context.Context, sessionID primitive.ObjectID, name string) error {
	_, err := s.db.DB().ExecContext(ctx,
		`INSERT INTO sessions (id, name, created_at) VALUES (?, ?, ?)`,
		sessionID.Hex(), name, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// DeleteSession cascades to participants, geofences and events.
func (s *Store) DeleteSession(ctx context.Context, sessionID primitive.ObjectID) error {
	if _, err := s.db.DB().ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID.Hex()); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, participant *models.Participant) error {
	_, err := s.db.DB().ExecContext(ctx,
		`INSERT INTO session_participants (session_id, user_id, name) VALUES (?, ?, ?)`,
		participant.SessionID.Hex(), participant.UserID.Hex(), participant.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

func (s *Store) ListParticipants(ctx context.Context, sessionID primitive.ObjectID) ([]*models.Participant, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT user_id, name FROM session_participants WHERE session_id = ? ORDER BY rowid`,
		sessionID.Hex(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		var userID, name string
		if err := rows.Scan(&userID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		id, err := parseID(userID)
		if err != nil {
			return nil, err
		}
		participants = append(participants, &models.Participant{SessionID: sessionID, UserID: id, Name: name})
	}
	return participants, rows.Err()
}

func (s *Store) SaveGeofence(ctx context.Context, geofence *models.Geofence) error {
	if geofence.ID.IsZero() {
		geofence.ID = primitive.NewObjectID()
	}
	if geofence.CreatedAt.IsZero() {
		geofence.CreatedAt = time.Now()
	}

	document, err := json.Marshal(geofence)
	if err != nil {
		return fmt.Errorf("failed to encode geofence: %w", err)
	}

	_, err = s.db.DB().ExecContext(ctx,
		`INSERT INTO geofences (id, session_id, active, document, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET active = excluded.active, document = excluded.document`,
		geofence.ID.Hex(), geofence.SessionID.Hex(), geofence.Active, string(document), formatTime(geofence.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save geofence: %w", err)
	}
	return nil
}

func (s *Store) ListActiveGeofences(ctx context.Context, sessionID primitive.ObjectID) ([]*models.Geofence, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT document FROM geofences WHERE session_id = ? AND active = 1 ORDER BY created_at`,
		sessionID.Hex(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query geofences: %w", err)
	}
	defer rows.Close()

	var geofences []*models.Geofence
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan geofence: %w", err)
		}
		var geofence models.Geofence
		if err := json.Unmarshal([]byte(document), &geofence); err != nil {
			return nil, fmt.Errorf("failed to decode geofence: %w", err)
		}
		geofences = append(geofences, &geofence)
	}
	return geofences, rows.Err()
}

func (s *Store) GetLatestLocation(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.LocationSample, error) {
	var (
		id, timestamp, createdAt string
		sample                   = models.LocationSample{SessionID: sessionID, UserID: userID}
		accuracy                 sql.NullFloat64
	)
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT id, lat, lng, accuracy, timestamp, created_at FROM locations
		 WHERE session_id = ? AND user_id = ?
		 ORDER BY timestamp DESC, rowid DESC LIMIT 1`,
		sessionID.Hex(), userID.Hex(),
	).Scan(&id, &sample.Location.Lat, &sample.Location.Lng, &accuracy, &timestamp, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest location: %w", err)
	}

	if sample.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if accuracy.Valid {
		sample.Accuracy = &accuracy.Float64
	}
	if sample.Timestamp, err = parseTime(timestamp); err != nil {
		return nil, fmt.Errorf("failed to parse location timestamp: %w", err)
	}
	if sample.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse location created_at: %w", err)
	}
	return &sample, nil
}

func (s *Store) SaveLocation(ctx context.Context, sample *models.LocationSample) error {
	if sample.ID.IsZero() {
		sample.ID = primitive.NewObjectID()
	}
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now()
	}

	var accuracy sql.NullFloat64
	if sample.Accuracy != nil {
		accuracy = sql.NullFloat64{Float64: *sample.Accuracy, Valid: true}
	}

	_, err := s.db.DB().ExecContext(ctx,
		`INSERT INTO locations (id, session_id, user_id, lat, lng, accuracy, timestamp, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.ID.Hex(), sample.SessionID.Hex(), sample.UserID.Hex(),
		sample.Location.Lat, sample.Location.Lng, accuracy,
		formatTime(sample.Timestamp), formatTime(sample.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}
	return nil
}

func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID.IsZero() {
		alert.ID = primitive.NewObjectID()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	return s.insertDocument(ctx, "alerts", "session_id", alert.ID, alert.SessionID, alert.CreatedAt, alert)
}

func (s *Store) CreateSystemMessage(ctx context.Context, message *models.Message) error {
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	return s.insertDocument(ctx, "messages", "session_id", message.ID, message.SessionID, message.CreatedAt, message)
}

func (s *Store) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return s.CreateNotifications(ctx, []*models.Notification{notification})
}

func (s *Store) CreateNotifications(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, n := range notifications {
			if n.ID.IsZero() {
				n.ID = primitive.NewObjectID()
			}
			if n.CreatedAt.IsZero() {
				n.CreatedAt = time.Now()
			}
			document, err := json.Marshal(n)
			if err != nil {
				return fmt.Errorf("failed to encode notification: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO notifications (id, document, user_id, created_at) VALUES (?, ?, ?, ?)`,
				n.ID.Hex(), string(document), n.UserID.Hex(), formatTime(n.CreatedAt),
			); err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}
		}
		return nil
	})
}

// insertDocument stores a JSON-encoded record keyed by id.
func (s *Store) insertDocument(ctx context.Context, table, ownerColumn string, id, owner primitive.ObjectID, createdAt time.Time, record interface{}) error {
	document, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", table, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, document, %s, created_at) VALUES (?, ?, ?, ?)`, table, ownerColumn)
	if _, err := s.db.DB().ExecContext(ctx, query, id.Hex(), string(document), owner.Hex(), formatTime(createdAt)); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// Alerts returns the alerts of a session, oldest first.
func (s *Store) Alerts(ctx context.Context, sessionID primitive.ObjectID) ([]*models.Alert, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT document FROM alerts WHERE session_id = ? ORDER BY created_at`, sessionID.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		var alert models.Alert
		if err := json.Unmarshal([]byte(document), &alert); err != nil {
			return nil, fmt.Errorf("failed to decode alert: %w", err)
		}
		alerts = append(alerts, &alert)
	}
	return alerts, rows.Err()
}
