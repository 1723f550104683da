package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
)

// EventActivityRecorded is the event name carried by every published message.
const EventActivityRecorded = "activity_recorded"

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON payload published for each activity.
type Event struct {
	Event    string         `json:"event"`
	Activity model.Activity `json:"activity"`
}

// KafkaPublisher publishes activities as JSON, keyed by target id so one
// account's events stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaWriter builds a writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Record(ctx context.Context, a model.Activity) error {
	data, err := json.Marshal(Event{Event: EventActivityRecorded, Activity: a})
	if err != nil {
		return fmt.Errorf("marshal activity event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.TargetID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("publish activity event: %w", err)
	}
	return nil
}

// PingBrokers dials each broker in turn and succeeds on the first that answers.
func PingBrokers(brokers []string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var lastErr error
		for _, addr := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				continue
			}
			return conn.Close()
		}
		if lastErr == nil {
			return errors.New("no kafka brokers configured")
		}
		return fmt.Errorf("dial kafka: %w", lastErr)
	}
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
