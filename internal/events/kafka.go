package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka publishes events as JSON, keyed by group ID so that each group's
// events stay ordered within a partition.
//
// Writes are asynchronous: Publish only queues the message, and delivery
// failures are reported to the onDropped callback given to NewKafka.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a publisher writing to topic on brokers. onDropped, when
// set, is called with the number of messages lost in each failed batch.
func NewKafka(brokers []string, topic string, onDropped func(n int, err error)) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil && onDropped != nil {
					onDropped(len(messages), err)
				}
			},
		},
	}
}

func (p *Kafka) Publish(ctx context.Context, event GroupEvent) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}
	return nil
}

func (p *Kafka) Close() error {
	return p.writer.Close()
}

func encode(event GroupEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.GroupID),
		Value: data,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}, nil
}
