// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Event types.
const (
	OrderCreated     = "order.created"
	PaymentRecorded  = "payment.recorded"
	CashReconciled   = "cash.reconciled"
	MessageBroadcast = "message.broadcast"
	InvoiceGenerated = "invoice.generated"
)

// Event is the envelope written to the topic.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	TenantID   int64     `json:"tenant_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New builds an event with a fresh id.
func New(eventType string, tenantID int64, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher emits domain events. Implementations never fail the caller's
// request: errors are logged.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// KafkaPublisher writes events through a synchronous producer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher wraps an existing producer.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// ProducerConfig returns the sarama configuration used for the event producer.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = false
	cfg.Net.TLS.Enable = false
	return cfg
}

// Dial connects a synchronous producer to brokers.
func Dial(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("events: start producer: %w", err)
	}
	return NewKafkaPublisher(producer, topic, logger), nil
}

// Publish sends event keyed by tenant so a tenant's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event", slog.String("type", event.Type), slog.Any("error", err))
		return
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(event.TenantID, 10)),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		p.logger.Error("publish event", slog.String("type", event.Type), slog.String("id", event.ID), slog.Any("error", err))
		return
	}
	p.logger.Debug("event published", slog.String("type", event.Type), slog.Int("partition", int(partition)), slog.Int64("offset", offset))
}

// Close shuts the producer down.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher is used when no brokers are configured.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs the event.
func (p LogPublisher) Publish(ctx context.Context, event Event) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("event", slog.String("type", event.Type), slog.String("id", event.ID), slog.Int64("tenant_id", event.TenantID))
}
