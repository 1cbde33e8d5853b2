package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"geowatch/internal/config"
	"geowatch/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads location updates from a consumer group. An offset is
// committed only after its update was processed or found to be permanently
// invalid, so a transient repository failure is retried instead of lost.
type KafkaConsumer struct {
	reader     messageReader
	processor  Processor
	logger     *logger.Logger
	backoff    time.Duration
	maxBackoff time.Duration
}

func NewKafkaConsumer(cfg *config.KafkaConfig, processor Processor, log *logger.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka topic and group id are required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newKafkaConsumer(reader, processor, log), nil
}

func newKafkaConsumer(reader messageReader, processor Processor, log *logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		processor:  processor,
		logger:     log.WithComponent("kafka_ingest"),
		backoff:    500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run consumes until ctx is cancelled or the reader is closed.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Info("Kafka ingest started")
	defer c.logger.Info("Kafka ingest stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, kafka.ErrGroupClosed) {
				return nil
			}
			c.logger.WithError(err).Error("Failed to fetch kafka message")
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}

		if !c.processWithRetry(ctx, msg) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit kafka offset %d: %w", msg.Offset, err)
		}
	}
}

// processWithRetry returns false only when ctx ended before the message
// could be processed.
func (c *KafkaConsumer) processWithRetry(ctx context.Context, msg kafka.Message) bool {
	log := c.logger.WithFields(map[string]interface{}{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	update, err := decodeUpdate(msg.Value, primitive.NilObjectID)
	if err != nil {
		log.WithError(err).Warn("Dropping location update")
		return true
	}

	delay := c.backoff
	for attempt := 1; ; attempt++ {
		_, err := c.processor.ProcessLocationUpdate(ctx, update)
		if err == nil {
			return true
		}
		if isPermanent(err) {
			log.WithError(err).Warn("Dropping location update")
			return true
		}

		log.WithError(err).WithField("attempt", attempt).Error("Failed to process location update, retrying")
		if !sleep(ctx, delay) {
			return false
		}
		delay *= 2
		if delay > c.maxBackoff {
			delay = c.maxBackoff
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
