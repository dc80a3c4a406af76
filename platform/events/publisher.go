// Package events emits delivery outcomes to Kafka for downstream
// consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// Publisher writes delivery outcomes to a Kafka topic. Messages are
// keyed by event id so per-event ordering survives partitioning.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher builds a Kafka-backed publisher.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}
	return &Publisher{writer: writer, logger: logger}
}

// Publish emits one outcome. Failures are returned to the caller; the
// delivery state transition has already been committed by then, so the
// caller only logs.
func (p *Publisher) Publish(ctx context.Context, outcome models.DeliveryOutcome) error {
	value, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal delivery outcome: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(outcome.EventID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write delivery outcome to kafka: %w", err)
	}

	p.logger.Debug("published delivery outcome",
		zap.String("event_id", outcome.EventID),
		zap.String("status", string(outcome.Status)))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
