// Package events ships studio domain events over Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the publisher needs
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes JSON encoded events keyed by aggregate id
type Publisher struct {
	writer Writer
}

// NewPublisher creates a publisher writing to topic on brokers
func NewPublisher(brokers []string, topic string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same aggregate, same partition
		RequiredAcks: kafka.RequireAll,
	})
}

// NewPublisherWithWriter allows injecting a test writer
func NewPublisherWithWriter(w Writer) *Publisher {
	return &Publisher{writer: w}
}

// Publish implements services.EventPublisher
func (p *Publisher) Publish(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{Key: []byte(key), Value: b, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("kafka write error for key %s: %v", key, err)
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Reader is the subset of kafka.Reader the consumer needs
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the decoded form of a published event
type Envelope struct {
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Handler processes one event; an error leaves the offset uncommitted
type Handler func(ctx context.Context, key string, env Envelope) error

// Consumer reads events in a consumer group
type Consumer struct {
	reader  Reader
	timeout time.Duration
	backoff time.Duration
}

// NewConsumer joins groupID on topic
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return NewConsumerWithReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}))
}

// NewConsumerWithReader allows injecting a test reader
func NewConsumerWithReader(r Reader) *Consumer {
	return &Consumer{reader: r, timeout: 10 * time.Second, backoff: time.Second}
}

// Run fetches until ctx is cancelled
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("kafka fetch error: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			// poison message, skip it
			log.Printf("dropping undecodable event at offset %d: %v", m.Offset, err)
		} else {
			processCtx, cancel := context.WithTimeout(ctx, c.timeout)
			err = handler(processCtx, string(m.Key), env)
			cancel()
			if err != nil {
				log.Printf("event %s at offset %d failed: %v", env.Event, m.Offset, err)
				continue
			}
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Printf("failed to commit offset %d: %v", m.Offset, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
