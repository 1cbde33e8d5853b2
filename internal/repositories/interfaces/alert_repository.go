package interfaces

import (
	"context"

	"geowatch/internal/models"
)

type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *models.Alert) error
	CreateSystemMessage(ctx context.Context, message *models.Message) error
	CreateNotification(ctx context.Context, notification *models.Notification) error
	CreateNotifications(ctx context.Context, notifications []*models.Notification) error
}
