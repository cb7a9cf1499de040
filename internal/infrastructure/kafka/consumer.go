package kafka

import (
	"context"
	"log"

	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one consumed message. The offset is committed
// even when the handler errors: handlers own their retry policy, and an
// event that cannot be handled now will not become handleable by redelivery.
type MessageHandler func(ctx context.Context, key, value []byte) error

// Consumer reads a topic within a consumer group, committing offsets only
// after the handler has run. Used by the payment listener (completed-payment
// events) and the e-mail notifier (order lifecycle events).
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}),
	}
}

func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Kafka] Fetch error on %s: %v", c.reader.Config().Topic, err)
			continue
		}

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			log.Printf("[Kafka] Handler error on %s at offset %d: %v",
				c.reader.Config().Topic, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Kafka] Commit error on %s: %v", c.reader.Config().Topic, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
