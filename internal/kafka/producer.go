package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing portfolio events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishTransactionRecorded publishes a transaction recorded event
func (p *Producer) PublishTransactionRecorded(ctx context.Context, t *models.Transaction) error {
	event := models.PortfolioEvent{
		EventID:     uuid.NewString(),
		EventType:   models.EventTransactionRecorded,
		Username:    t.Username,
		Symbol:      t.Symbol,
		Transaction: t,
		Timestamp:   p.now().UTC(),
	}
	return p.publish(ctx, t.Username, event)
}

// PublishAlertSent publishes an alert sent event
func (p *Producer) PublishAlertSent(ctx context.Context, n *models.Notification) error {
	event := models.PortfolioEvent{
		EventID:      uuid.NewString(),
		EventType:    models.EventAlertSent,
		Username:     n.Username,
		Symbol:       n.Symbol,
		Notification: n,
		Timestamp:    p.now().UTC(),
	}
	return p.publish(ctx, n.Username, event)
}

// publish keys messages by username so one user's events keep their order
func (p *Producer) publish(ctx context.Context, key string, event models.PortfolioEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s to %s: %w", event.EventType, p.topic, err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. It stands in when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishTransactionRecorded(context.Context, *models.Transaction) error {
	return nil
}

func (NopPublisher) PublishAlertSent(context.Context, *models.Notification) error { return nil }

func (NopPublisher) Close() error { return nil }
