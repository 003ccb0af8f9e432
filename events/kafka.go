package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"virtualbank-gateway/config"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer      MessageWriter
	topicPrefix string
	now         func() time.Time
	logger      *slog.Logger
}

func NewKafkaPublisher(writer MessageWriter, topicPrefix string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer:      writer,
		topicPrefix: topicPrefix,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

// New returns a Kafka backed publisher, or a Disabled one when events are
// switched off or no brokers are configured.
func New(cfg config.EventsConfig, logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Warn("event bridge disabled via configuration",
			"event", "events_disabled",
			"module", "events",
			"layer", "platform",
		)
		return NewDisabled(logger)
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            5,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}
	logger.Info("kafka event bridge configured",
		"event", "events_configured",
		"module", "events",
		"layer", "platform",
		"brokers", cfg.Brokers,
		"topic_prefix", cfg.TopicPrefix,
	)
	return NewKafkaPublisher(writer, cfg.TopicPrefix, logger)
}

func (p *KafkaPublisher) Enabled() bool { return true }

// Topic returns the topic an event type is written to.
func (p *KafkaPublisher) Topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

// Publish writes one message keyed by the event key. The message value is
// the JSON payload; type, version and timestamp travel as headers.
func (p *KafkaPublisher) Publish(ctx context.Context, ev DomainEvent) error {
	envelope := Serialize(ev, p.now())
	value, err := json.Marshal(envelope.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", ev.Type, err)
	}

	topic := p.Topic(ev.Type)
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(envelope.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(envelope.Type)},
			{Key: headerEventVersion, Value: []byte(strconv.Itoa(envelope.Version))},
			{Key: headerEventTimestamp, Value: []byte(envelope.OccurredAt)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish domain event",
			"event", "domain_event_publish_failed",
			"module", "events",
			"layer", "platform",
			"topic", topic,
			"event_key", envelope.Key,
			"error", err.Error(),
		)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Debug("published domain event",
		"event", "domain_event_published",
		"module", "events",
		"layer", "platform",
		"topic", topic,
		"event_key", envelope.Key,
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
