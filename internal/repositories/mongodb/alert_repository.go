package mongodb

import (
	"context"
	"fmt"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/pkg/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type alertRepository struct {
	alerts        *mongo.Collection
	messages      *mongo.Collection
	notifications *mongo.Collection
}

func NewAlertRepository(db *mongo.Database) interfaces.AlertRepository {
	return &alertRepository{
		alerts:        db.Collection(database.CollectionAlerts),
		messages:      db.Collection(database.CollectionMessages),
		notifications: db.Collection(database.CollectionNotifications),
	}
}

func (r *alertRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID.IsZero() {
		alert.ID = primitive.NewObjectID()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	if _, err := r.alerts.InsertOne(ctx, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *alertRepository) CreateSystemMessage(ctx context.Context, message *models.Message) error {
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	if _, err := r.messages.InsertOne(ctx, message); err != nil {
		return fmt.Errorf("failed to create system message: %w", err)
	}
	return nil
}

func (r *alertRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	prepareNotification(notification)

	if _, err := r.notifications.InsertOne(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *alertRepository) CreateNotifications(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	documents := make([]interface{}, len(notifications))
	for i, notification := range notifications {
		prepareNotification(notification)
		documents[i] = notification
	}

	if _, err := r.notifications.InsertMany(ctx, documents); err != nil {
		return fmt.Errorf("failed to create batch notifications: %w", err)
	}
	return nil
}

func prepareNotification(notification *models.Notification) {
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	if notification.Status == "" {
		notification.Status = models.NotificationStatusUnread
	}
}
