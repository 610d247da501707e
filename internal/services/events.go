package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/segmentio/kafka-go"
)

// EventPublisher forwards workflow notifications to an external bus
type EventPublisher interface {
	Publish(ctx context.Context, n *Notification) error
	Close() error
}

// NewEventPublisher returns a Kafka publisher when enabled, otherwise a no-op
func NewEventPublisher(cfg *config.KafkaConfig) EventPublisher {
	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 || cfg.EventTopic == "" {
		return NoopEventPublisher{}
	}
	return NewKafkaEventPublisher(cfg.Brokers, cfg.EventTopic)
}

type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(ctx context.Context, n *Notification) error { return nil }
func (NoopEventPublisher) Close() error                                         { return nil }

type KafkaEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish writes the notification keyed by entity so events of one thesis stay ordered
func (p *KafkaEventPublisher) Publish(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.EntityID.String()),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish workflow event: %w", err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
