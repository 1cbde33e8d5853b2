package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geowatch/internal/config"
	"geowatch/pkg/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSubscriber consumes location updates published by devices on
// geowatch/sessions/<session_id>/locations.
type MQTTSubscriber struct {
	cfg       *config.MQTTConfig
	processor Processor
	logger    *logger.Logger
	timeout   time.Duration
}

func NewMQTTSubscriber(cfg *config.MQTTConfig, processor Processor, log *logger.Logger) *MQTTSubscriber {
	return &MQTTSubscriber{
		cfg:       cfg,
		processor: processor,
		logger:    log.WithComponent("mqtt_ingest"),
		timeout:   10 * time.Second,
	}
}

// Run connects, subscribes and blocks until ctx is cancelled.
func (s *MQTTSubscriber) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.cfg.ClientID).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetOrderMatters(true)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username).SetPassword(s.cfg.Password)
	}

	// Resubscribe on every (re)connect; the broker may have dropped the session.
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		token := client.Subscribe(s.cfg.Topic, byte(s.cfg.QoS), func(_ mqtt.Client, msg mqtt.Message) {
			s.handleMessage(ctx, msg)
		})
		if err := waitToken(token, s.cfg.ConnectTimeout); err != nil {
			s.logger.WithError(err).WithField("topic", s.cfg.Topic).Error("Failed to subscribe")
			return
		}
		s.logger.WithField("topic", s.cfg.Topic).Info("Subscribed to location topic")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.WithError(err).Warn("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	if err := waitToken(client.Connect(), s.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", s.cfg.BrokerURL, err)
	}
	s.logger.WithField("broker", s.cfg.BrokerURL).Info("MQTT ingest started")

	<-ctx.Done()

	client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	client.Disconnect(250)
	s.logger.Info("MQTT ingest stopped")
	return nil
}

// handleMessage processes one message. Failures are logged; paho acknowledges
// the message once the handler returns.
func (s *MQTTSubscriber) handleMessage(ctx context.Context, msg mqtt.Message) {
	log := s.logger.WithField("topic", msg.Topic())

	sessionID, err := sessionFromTopic(msg.Topic())
	if err != nil {
		log.WithError(err).Warn("Dropping location update")
		return
	}
	update, err := decodeUpdate(msg.Payload(), sessionID)
	if err != nil {
		log.WithError(err).Warn("Dropping location update")
		return
	}

	processCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.processor.ProcessLocationUpdate(processCtx, update)
	if err != nil {
		log = log.WithSessionID(update.SessionID).WithUserID(update.UserID).WithError(err)
		if isPermanent(err) {
			log.Warn("Dropping location update")
			return
		}
		log.Error("Failed to process location update")
		return
	}
	if len(result.Events) > 0 {
		log.WithSessionID(update.SessionID).WithUserID(update.UserID).
			WithField("events", len(result.Events)).Debug("Location update produced events")
	}
}

var errTokenTimeout = errors.New("timed out waiting for broker")

// waitToken treats a token that does not complete within timeout as failed.
func waitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errTokenTimeout
	}
	return token.Error()
}
