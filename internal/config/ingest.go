package config

import "time"

type IngestConfig struct {
	MQTT  *MQTTConfig
	Kafka *KafkaConfig
}

type MQTTConfig struct {
	Enabled        bool
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	QoS            int
	ConnectTimeout time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

func loadIngestConfig() *IngestConfig {
	return &IngestConfig{
		MQTT: &MQTTConfig{
			Enabled:        getEnvAsBool("MQTT_ENABLED", false),
			BrokerURL:      getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:       getEnv("MQTT_CLIENT_ID", "geowatch-ingest"),
			Username:       getEnv("MQTT_USERNAME", ""),
			Password:       getEnv("MQTT_PASSWORD", ""),
			Topic:          getEnv("MQTT_TOPIC", "geowatch/sessions/+/locations"),
			QoS:            getEnvAsInt("MQTT_QOS", 1),
			ConnectTimeout: getEnvAsDuration("MQTT_CONNECT_TIMEOUT", 10*time.Second),
		},
		Kafka: &KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "location-updates"),
			GroupID: getEnv("KAFKA_GROUP_ID", "geowatch-evaluator"),
		},
	}
}
