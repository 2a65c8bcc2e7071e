package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rongwang/banking-server/internal/events"
	"github.com/segmentio/kafka-go"
)

// Publisher writes events to a Kafka topic, keyed by reference so retries of
// the same request land on the same partition.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, event events.TransactionPosted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, newMessage(event, data))
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newMessage(event events.TransactionPosted, data []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(event.Reference),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "transaction-id", Value: []byte(strconv.FormatInt(event.TransactionID, 10))},
		},
	}
}

var _ events.Publisher = (*Publisher)(nil)
