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
	"geowatch/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const eventColumns = `id, geofence_id, session_id, user_id, event_type, timestamp, lat, lng,
	alert_sent, acknowledged, acknowledged_by, acknowledged_at, metadata`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.GeofenceEvent, error) {
	var (
		event                                      models.GeofenceEvent
		id, geofenceID, sessionID, userID, eventTS string
		ackBy, ackAt, metadata                     sql.NullString
	)
	err := row.Scan(&id, &geofenceID, &sessionID, &userID, &event.EventType, &eventTS,
		&event.Location.Lat, &event.Location.Lng, &event.AlertSent, &event.Acknowledged,
		&ackBy, &ackAt, &metadata)
	if err != nil {
		return nil, err
	}

	if event.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if event.GeofenceID, err = parseID(geofenceID); err != nil {
		return nil, err
	}
	if event.SessionID, err = parseID(sessionID); err != nil {
		return nil, err
	}
	if event.UserID, err = parseID(userID); err != nil {
		return nil, err
	}
	if event.Timestamp, err = parseTime(eventTS); err != nil {
		return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
	}
	if ackBy.Valid {
		by, err := parseID(ackBy.String)
		if err != nil {
			return nil, err
		}
		event.AcknowledgedBy = &by
	}
	if ackAt.Valid {
		at, err := parseTime(ackAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse acknowledged_at: %w", err)
		}
		event.AcknowledgedAt = &at
	}
	if metadata.Valid {
		event.Metadata = &models.EventMetadata{}
		if err := json.Unmarshal([]byte(metadata.String), event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode event metadata: %w", err)
		}
	}
	return &event, nil
}

func (s *Store) GetLastEvent(ctx context.Context, userID, geofenceID primitive.ObjectID, eventType models.GeofenceEventType) (*models.GeofenceEvent, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM geofence_events
		 WHERE user_id = ? AND geofence_id = ? AND event_type = ?
		 ORDER BY timestamp DESC, rowid DESC LIMIT 1`,
		userID.Hex(), geofenceID.Hex(), string(eventType),
	)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last %s event: %w", eventType, err)
	}
	return event, nil
}

// InsertEvent checks the session and inserts in one transaction so a
// concurrent session delete either cascades the event or rejects it.
func (s *Store) InsertEvent(ctx context.Context, event *models.GeofenceEvent) (primitive.ObjectID, error) {
	id := event.ID
	if id.IsZero() {
		id = primitive.NewObjectID()
	}

	var metadata sql.NullString
	if !event.Metadata.IsEmpty() {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("failed to encode event metadata: %w", err)
		}
		metadata = sql.NullString{String: string(encoded), Valid: true}
	}

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, event.SessionID.Hex()).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return interfaces.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO geofence_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?)`,
			id.Hex(), event.GeofenceID.Hex(), event.SessionID.Hex(), event.UserID.Hex(),
			string(event.EventType), formatTime(event.Timestamp),
			event.Location.Lat, event.Location.Lng, event.AlertSent, event.Acknowledged, metadata,
		)
		if err != nil {
			return fmt.Errorf("failed to insert geofence event: %w", err)
		}
		return nil
	})
	if err != nil {
		return primitive.NilObjectID, err
	}
	return id, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.GeofenceEvent, error) {
	row := s.db.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM geofence_events WHERE id = ?`, id.Hex())
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get geofence event: %w", err)
	}
	return event, nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID primitive.ObjectID, filter models.EventFilter, params *utils.PaginationParams) ([]*models.GeofenceEvent, int64, error) {
	where := `session_id = ?`
	args := []interface{}{sessionID.Hex()}
	if filter.EventType != "" {
		where += ` AND event_type = ?`
		args = append(args, string(filter.EventType))
	}
	if !filter.UserID.IsZero() {
		where += ` AND user_id = ?`
		args = append(args, filter.UserID.Hex())
	}

	var total int64
	if err := s.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM geofence_events WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count geofence events: %w", err)
	}

	// column comes from a fixed whitelist, never from the request verbatim.
	column := params.SortField("timestamp", models.EventSortFields...)
	direction := "ASC"
	if params.Descending() {
		direction = "DESC"
	}

	rows, err := s.db.DB().QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM geofence_events WHERE %s ORDER BY %s %s, rowid %s LIMIT ? OFFSET ?`,
			eventColumns, where, column, direction, direction),
		append(args, params.GetLimit(), params.GetSkip())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query geofence events: %w", err)
	}
	defer rows.Close()

	events := []*models.GeofenceEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan geofence event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate geofence events: %w", err)
	}
	return events, total, nil
}

func (s *Store) Acknowledge(ctx context.Context, id, acknowledgedBy primitive.ObjectID, at time.Time) error {
	result, err := s.db.DB().ExecContext(ctx,
		`UPDATE geofence_events SET acknowledged = 1, acknowledged_by = ?, acknowledged_at = ?
		 WHERE id = ? AND acknowledged = 0`,
		acknowledgedBy.Hex(), formatTime(at), id.Hex(),
	)
	if err != nil {
		return fmt.Errorf("failed to acknowledge geofence event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to acknowledge geofence event: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = s.db.DB().QueryRowContext(ctx, `SELECT 1 FROM geofence_events WHERE id = ?`, id.Hex()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check geofence event: %w", err)
	}
	return interfaces.ErrAlreadyAcknowledged
}
