package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"reel-relay/internal/domain/entity"
)

// MessageWriter is the subset of *kafka.Writer the forwarder uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder mirrors domain events onto a Kafka topic so that consumers
// outside this process can rebuild delivery state. It is an ordinary
// subscriber: a broker failure shows up as a handler error.
type KafkaForwarder struct {
	writer MessageWriter
	topic  string
}

// NewKafkaForwarder builds a forwarder backed by a kafka.Writer.
func NewKafkaForwarder(brokers []string, topic string) (*KafkaForwarder, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka forwarder requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka forwarder requires a topic")
	}
	return NewKafkaForwarderWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}, topic), nil
}

// NewKafkaForwarderWithWriter is used by tests to substitute the writer.
func NewKafkaForwarderWithWriter(w MessageWriter, topic string) *KafkaForwarder {
	return &KafkaForwarder{writer: w, topic: topic}
}

// wireEvent is the JSON shape written to the topic.
type wireEvent struct {
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

type partitionKeyer interface {
	PartitionKey() string
}

// Handle writes evt to the topic.
func (f *KafkaForwarder) Handle(ctx context.Context, evt entity.DomainEvent) error {
	value, err := json.Marshal(wireEvent{Name: evt.Name, OccurredAt: evt.OccurredAt.UTC(), Payload: evt.Payload})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", evt.Name, err)
	}

	msg := kafka.Message{
		Value: value,
		Time:  evt.OccurredAt.UTC(),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(evt.Name)},
		},
	}
	if k, ok := evt.Payload.(partitionKeyer); ok {
		msg.Key = []byte(k.PartitionKey())
	}

	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("forward event %s to %s: %w", evt.Name, f.topic, err)
	}
	return nil
}

// Attach subscribes the forwarder to each named event.
func (f *KafkaForwarder) Attach(bus *Bus, eventNames ...string) {
	for _, name := range eventNames {
		bus.Subscribe(name, "kafka-forwarder", f.Handle)
	}
}

func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
