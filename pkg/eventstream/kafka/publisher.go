// Package kafka publishes run events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/lectorhq/lector/pkg/eventstream"
)

const (
	// DefaultTopic is the topic run events land on.
	DefaultTopic = "lector.runs"

	// DefaultBatchTimeout flushes partial batches quickly since run
	// events are low volume.
	DefaultBatchTimeout = 100 * time.Millisecond
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the bootstrap broker list. Required.
	Brokers []string

	// Topic defaults to DefaultTopic.
	Topic string
}

// Publisher writes run events to Kafka, keyed by pipeline so one
// pipeline's events stay ordered within a partition.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: DefaultBatchTimeout,
	}

	return &Publisher{writer: writer, logger: logger}, nil
}

// PublishRun serializes the event and writes it to the topic.
func (p *Publisher) PublishRun(ctx context.Context, event *eventstream.RunCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilRunEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling run event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Source.Pipeline),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing run event: %w", err)
	}

	p.logger.Debug("published run event",
		"event_id", event.EventID,
		"pipeline", event.Source.Pipeline,
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
