package services

import (
	"context"
	"fmt"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DispatchRequest describes one persisted event that asked for an alert.
type DispatchRequest struct {
	Event         *models.GeofenceEvent
	Geofence      *models.Geofence
	CustomMessage string
	Priority      models.AlertPriority
}

// AlertPublisher pushes a stored alert to live subscribers.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *models.Alert) error
}

type AlertDispatcher interface {
	// Dispatch never fails; every side effect is attempted and failures are
	// logged.
	Dispatch(ctx context.Context, req *DispatchRequest)
}

type alertDispatcher struct {
	alertRepo   interfaces.AlertRepository
	sessionRepo interfaces.SessionRepository
	publishers  []AlertPublisher
	logger      *logger.Logger
	now         func() time.Time
}

func NewAlertDispatcher(alertRepo interfaces.AlertRepository, sessionRepo interfaces.SessionRepository, publishers []AlertPublisher, log *logger.Logger) AlertDispatcher {
	return &alertDispatcher{
		alertRepo:   alertRepo,
		sessionRepo: sessionRepo,
		publishers:  publishers,
		logger:      log.WithComponent("alert_dispatcher"),
		now:         time.Now,
	}
}

func (d *alertDispatcher) Dispatch(ctx context.Context, req *DispatchRequest) {
	event := req.Event
	log := d.logger.WithSessionID(event.SessionID).WithGeofenceID(event.GeofenceID).
		WithUserID(event.UserID).WithField("event_id", event.ID.Hex())

	participants, err := d.sessionRepo.ListParticipants(ctx, event.SessionID)
	if err != nil {
		log.WithError(err).Warn("Failed to list session participants")
	}

	userName := event.UserID.Hex()
	for _, p := range participants {
		if p.UserID == event.UserID {
			userName = p.DisplayName()
			break
		}
	}

	message := req.CustomMessage
	if message == "" {
		message = alertMessage(event.EventType, userName, req.Geofence.Name)
	}
	priority := req.Priority
	if priority == "" {
		priority = models.AlertPriorityMedium
	}

	createdAt := d.now()
	alert := &models.Alert{
		ID:         primitive.NewObjectID(),
		SessionID:  event.SessionID,
		EventID:    event.ID,
		GeofenceID: event.GeofenceID,
		UserID:     event.UserID,
		Type:       alertTypeFor(event.EventType),
		Priority:   priority,
		Message:    message,
		Location:   event.Location,
		Status:     models.AlertStatusActive,
		CreatedAt:  createdAt,
	}

	alertStored := true
	if err := d.alertRepo.CreateAlert(ctx, alert); err != nil {
		alertStored = false
		log.WithError(err).Error("Failed to create alert")
	}

	alertID := alert.ID
	eventID := event.ID
	systemMessage := &models.Message{
		ID:        primitive.NewObjectID(),
		SessionID: event.SessionID,
		Type:      models.MessageTypeSystem,
		Content:   message,
		EventID:   &eventID,
		CreatedAt: createdAt,
	}
	if alertStored {
		systemMessage.AlertID = &alertID
	}
	if err := d.alertRepo.CreateSystemMessage(ctx, systemMessage); err != nil {
		log.WithError(err).Error("Failed to create system message")
	}

	if notifications := d.buildNotifications(alert, alertStored, participants); len(notifications) > 0 {
		if err := d.alertRepo.CreateNotifications(ctx, notifications); err != nil {
			log.WithError(err).WithField("recipients", len(notifications)).Error("Failed to create notifications")
		}
	}

	if !alertStored {
		return
	}
	for _, publisher := range d.publishers {
		if err := publisher.PublishAlert(ctx, alert); err != nil {
			log.WithError(err).Warn("Failed to publish alert")
		}
	}
}

func (d *alertDispatcher) buildNotifications(alert *models.Alert, alertStored bool, participants []*models.Participant) []*models.Notification {
	title := "Geofence Alert"
	if alert.Type == models.AlertTypeEmergency {
		title = "Restricted Zone Violation"
	}

	var notifications []*models.Notification
	for _, p := range participants {
		if p.UserID == alert.UserID {
			continue
		}
		notification := &models.Notification{
			ID:        primitive.NewObjectID(),
			SessionID: alert.SessionID,
			UserID:    p.UserID,
			Type:      models.NotificationTypeGeofenceAlert,
			Status:    models.NotificationStatusUnread,
			Title:     title,
			Message:   alert.Message,
			EventID:   alert.EventID,
			Priority:  alert.Priority,
			CreatedAt: alert.CreatedAt,
		}
		if alertStored {
			notification.AlertID = alert.ID
		}
		notifications = append(notifications, notification)
	}
	return notifications
}

func alertMessage(eventType models.GeofenceEventType, userName, zoneName string) string {
	switch eventType {
	case models.GeofenceEventEntry:
		return fmt.Sprintf("%s entered %s", userName, zoneName)
	case models.GeofenceEventExit:
		return fmt.Sprintf("%s exited %s", userName, zoneName)
	case models.GeofenceEventViolation:
		return fmt.Sprintf("VIOLATION: %s is in restricted zone %s", userName, zoneName)
	default:
		return fmt.Sprintf("%s triggered %s", userName, zoneName)
	}
}

func alertTypeFor(eventType models.GeofenceEventType) models.AlertType {
	if eventType == models.GeofenceEventViolation {
		return models.AlertTypeEmergency
	}
	return models.AlertTypeGeofence
}
