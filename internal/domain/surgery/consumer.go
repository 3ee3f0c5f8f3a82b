package surgery

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader returns a consumer-group reader for the case status topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1e6,
		MaxWait:  time.Second,
	})
}

// Consumer applies case status events read from Kafka.
type Consumer struct {
	reader  MessageReader
	svc     *Service
	logger  zerolog.Logger
	retries int
	backoff time.Duration
}

func NewConsumer(reader MessageReader, svc *Service, logger zerolog.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		svc:     svc,
		logger:  logger.With().Str("component", "case-consumer").Logger(),
		retries: 3,
		backoff: 500 * time.Millisecond,
	}
}

// Run consumes until ctx is cancelled. Malformed events and events for
// unknown cases are logged and committed. Store failures are retried a few
// times before the message is skipped.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("commit failed")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	log := c.logger.With().Int("partition", msg.Partition).Int64("offset", msg.Offset).Logger()

	var ev StatusEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		log.Warn().Err(err).Msg("skipping malformed status event")
		return
	}

	for attempt := 0; ; attempt++ {
		err := c.svc.ApplyStatus(ctx, ev)
		if err == nil {
			return
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidEvent) || attempt >= c.retries {
			log.Warn().Err(err).Str("case_id", ev.CaseID.String()).Msg("status event dropped")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
}
