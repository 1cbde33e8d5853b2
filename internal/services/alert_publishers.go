package services

import (
	"context"
	"fmt"

	"geowatch/internal/models"
	"geowatch/internal/utils"
	"geowatch/pkg/cache"
	"geowatch/pkg/websocket"
)

type redisAlertPublisher struct {
	cache *cache.RedisCache
}

// NewRedisAlertPublisher publishes alerts on geofence:alerts:<session>.
func NewRedisAlertPublisher(cache *cache.RedisCache) AlertPublisher {
	return &redisAlertPublisher{cache: cache}
}

func (p *redisAlertPublisher) PublishAlert(ctx context.Context, alert *models.Alert) error {
	channel := utils.CacheAlertChannelPrefix + alert.SessionID.Hex()
	if err := p.cache.Publish(ctx, channel, alert); err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", channel, err)
	}
	return nil
}

type websocketAlertPublisher struct {
	hub *websocket.Hub
}

func NewWebSocketAlertPublisher(hub *websocket.Hub) AlertPublisher {
	return &websocketAlertPublisher{hub: hub}
}

func (p *websocketAlertPublisher) PublishAlert(_ context.Context, alert *models.Alert) error {
	return p.hub.BroadcastToSession(alert.SessionID, "geofence_alert", alert)
}
