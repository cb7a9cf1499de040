package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// eventTyper is implemented by event envelopes that know their own type
// name. The producer mirrors it into a message header so consumers can route
// without unmarshaling the body.
type eventTyper interface {
	EventType() string
}

// Producer writes order lifecycle events to the orders topic. Messages are
// keyed by order ID and hashed to partitions, so all events for one order
// stay on one partition, in order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if typed, ok := event.(eventTyper); ok {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key:   "event-type",
			Value: []byte(typed.EventType()),
		})
	}

	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
