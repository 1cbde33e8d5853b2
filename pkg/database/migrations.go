package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by the mongodb repositories.
const (
	CollectionGeofences      = "geofences"
	CollectionLocations      = "locations"
	CollectionGeofenceEvents = "geofence_events"
	CollectionAlerts         = "alerts"
	CollectionMessages       = "messages"
	CollectionNotifications  = "notifications"
	CollectionSessions       = "sessions"
	CollectionParticipants   = "session_participants"
)

type Migration struct {
	Version     int
	Description string
	Up          func(context.Context, *mongo.Database) error
	Down        func(context.Context, *mongo.Database) error
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	logger     *logger.Logger
}

func NewMigrator(db *mongo.Database, log *logger.Logger) *Migrator {
	return &Migrator{
		db:         db,
		migrations: getMigrations(),
		logger:     log.WithComponent("migrator"),
	}
}

func (m *Migrator) Up(ctx context.Context) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}
		m.logger.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)

		if err := migration.Up(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := m.updateVersion(ctx, migration.Version); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}

	return nil
}

func (m *Migrator) Down(ctx context.Context, targetVersion int) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version > currentVersion || migration.Version <= targetVersion {
			continue
		}
		m.logger.WithField("version", migration.Version).Infof("Reverting migration: %s", migration.Description)

		if err := migration.Down(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d rollback failed: %w", migration.Version, err)
		}

		previousVersion := targetVersion
		if i > 0 {
			previousVersion = m.migrations[i-1].Version
		}
		if err := m.updateVersion(ctx, previousVersion); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}

	return nil
}

func (m *Migrator) getCurrentVersion(ctx context.Context) (int, error) {
	var result struct {
		Version int `bson:"version"`
	}

	err := m.db.Collection("migrations").FindOne(ctx, bson.D{}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}

	return result.Version, nil
}

func (m *Migrator) updateVersion(ctx context.Context, version int) error {
	_, err := m.db.Collection("migrations").ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{Key: "version", Value: version}, {Key: "updated_at", Value: time.Now()}},
		options.Replace().SetUpsert(true),
	)
	return err
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create geofences collection with indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				return createIndexes(ctx, db.Collection(CollectionGeofences), []mongo.IndexModel{
					{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "active", Value: 1}}},
				})
			},
			Down: dropCollection(CollectionGeofences),
		},
		{
			Version:     2,
			Description: "Create locations collection with indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				return createIndexes(ctx, db.Collection(CollectionLocations), []mongo.IndexModel{
					{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
				})
			},
			Down: dropCollection(CollectionLocations),
		},
		{
			Version:     3,
			Description: "Create geofence_events collection with indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				return createIndexes(ctx, db.Collection(CollectionGeofenceEvents), []mongo.IndexModel{
					{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "geofence_id", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}}},
					{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}}},
				})
			},
			Down: dropCollection(CollectionGeofenceEvents),
		},
		{
			Version:     4,
			Description: "Create alert fan-out collections with indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				if err := createIndexes(ctx, db.Collection(CollectionAlerts), []mongo.IndexModel{
					{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}}},
					{Keys: bson.D{{Key: "event_id", Value: 1}}},
				}); err != nil {
					return err
				}
				if err := createIndexes(ctx, db.Collection(CollectionMessages), []mongo.IndexModel{
					{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}}},
				}); err != nil {
					return err
				}
				return createIndexes(ctx, db.Collection(CollectionNotifications), []mongo.IndexModel{
					{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
				})
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				for _, name := range []string{CollectionAlerts, CollectionMessages, CollectionNotifications} {
					if err := db.Collection(name).Drop(ctx); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version:     5,
			Description: "Index session participants",
			Up: func(ctx context.Context, db *mongo.Database) error {
				return createIndexes(ctx, db.Collection(CollectionParticipants), []mongo.IndexModel{
					{
						Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "user_id", Value: 1}},
						Options: options.Index().SetUnique(true),
					},
				})
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(CollectionParticipants).Indexes().DropAll(ctx)
				return err
			},
		},
	}
}

func createIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) error {
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func dropCollection(name string) func(context.Context, *mongo.Database) error {
	return func(ctx context.Context, db *mongo.Database) error {
		return db.Collection(name).Drop(ctx)
	}
}
