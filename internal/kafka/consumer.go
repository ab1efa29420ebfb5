package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/cindychow0101/Portfolio-tracker/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// CycleRunner runs one full recomputation
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.CycleResult, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer triggers a recomputation cycle whenever a transaction is recorded.
// It lets the worker react to trades without waiting for the next tick.
type Consumer struct {
	reader messageReader
	runner CycleRunner
	topic  string
	log    zerolog.Logger
}

// NewConsumer creates a new Kafka consumer for portfolio events
func NewConsumer(brokers []string, topic, groupID string, runner CycleRunner, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		runner: runner,
		topic:  topic,
		log:    log.With().Str("component", "kafka_consumer").Logger(),
	}
}

// Start consumes messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.topic).Msg("Starting Kafka consumer")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info().Msg("Kafka consumer shutting down")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Error().Err(err).Msg("Error reading message")
			continue
		}

		if err := c.processMessage(ctx, msg); err != nil {
			c.log.Error().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Error processing message")
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PortfolioEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal portfolio event: %w", err)
	}

	if event.EventType != models.EventTransactionRecorded {
		c.log.Debug().Str("event_type", event.EventType).Msg("Ignoring event")
		return nil
	}

	c.log.Info().
		Str("event_id", event.EventID).
		Str("username", event.Username).
		Str("symbol", event.Symbol).
		Msg("Transaction recorded, running cycle")

	res, err := c.runner.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("cycle for event %s failed: %w", event.EventID, err)
	}
	if res.Errors != nil {
		c.log.Warn().Err(res.Errors).Str("event_id", event.EventID).Msg("Cycle completed with skipped entries")
	}
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
