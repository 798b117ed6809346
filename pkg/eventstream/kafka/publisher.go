// Package kafka provides an eventstream publisher backed by a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/papercomputeco/folio/pkg/eventstream"
)

const (
	// DefaultTopic is the topic document events are published to when none
	// is configured.
	DefaultTopic = "folio.documents"

	// defaultBatchTimeout keeps single events from sitting in the writer's
	// batch buffer. Document events are low volume, so latency wins over
	// throughput here.
	defaultBatchTimeout = 50 * time.Millisecond
)

// Config holds Kafka publisher settings.
type Config struct {
	// Brokers is the list of broker addresses (host:port). At least one is
	// required.
	Brokers []string

	// Topic overrides DefaultTopic when set.
	Topic string
}

// Publisher writes document events to a Kafka topic.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka-backed eventstream publisher. The writer
// connects lazily, so a broker does not need to be reachable until the first
// publish.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           defaultBatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	}

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishDocument writes the event keyed by document ID, so events for the
// same document land on the same partition and stay ordered.
func (p *Publisher) PublishDocument(ctx context.Context, event *eventstream.DocumentEvent) error {
	if event == nil {
		return eventstream.ErrNilDocumentEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal document event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Document.DocumentID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish document event: %w", err)
	}

	p.logger.Debug("published document event",
		"event_type", event.EventType,
		"event_id", event.EventID,
		"document_id", event.Document.DocumentID,
	)

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
