package bus

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/logs"
)

// Topics carried between the book service, the policy and the OMS.
const (
	TopicOrderBookUpdates = "orderbook.updates"
	TopicAction           = "oms.action"
	TopicExecutionUpdate  = "execution.update"
)

// Producer writes messages to one kafka topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer bound to a topic.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Produce writes one message.
func (p *Producer) Produce(ctx context.Context, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Value: value})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads messages from one kafka topic.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a consumer group reader bound to a topic.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Run reads messages until the context is done, handing each payload to
// handler. Read errors are logged and the loop continues.
func (c *Consumer) Run(ctx context.Context, handler func([]byte)) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logs.Errorf("kafka read failed: %v", err)
			continue
		}
		handler(msg.Value)
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
