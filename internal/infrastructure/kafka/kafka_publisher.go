package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

var _ domain.PublisherPort = (*DefaultKafkaPublisher)(nil)

type DefaultKafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewDefaultKafkaPublisher(brokers []string, topic string) *DefaultKafkaPublisher {
	return &DefaultKafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
	}
}

func (k *DefaultKafkaPublisher) Publish(ctx context.Context, topic string, msgs ...domain.Message) error {
	km := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km = append(km, kafka.Message{
			Key:   m.Key,
			Value: m.Value,
			Time:  time.Now(),
			Topic: topic,
		})
	}

	return k.writer.WriteMessages(ctx, km...)
}

// PublishTransaction writes the event keyed by transaction id so every event
// of one record lands on the same partition.
func (k *DefaultKafkaPublisher) PublishTransaction(ctx context.Context, event TransactionEvent) error {
	v, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transaction event: %w", err)
	}

	return k.Publish(ctx, k.topic, domain.Message{Key: []byte(event.TransactionID), Value: v})
}

func (k *DefaultKafkaPublisher) Close() error {
	return k.writer.Close()
}
