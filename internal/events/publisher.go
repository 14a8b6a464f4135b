// Package events publishes sync notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/workoutcache/internal/domain"
)

// EventTypeCollectionSynced is carried in the event_type header of every sync notification.
const EventTypeCollectionSynced = "collection.synced"

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes sync events to a single topic, keyed by collection.
type KafkaPublisher struct {
	topic  string
	writer messageWriter
}

// NewKafkaPublisher creates a publisher backed by a synchronous kafka.Writer.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		WriteTimeout: 10 * time.Second,
		Async:        false,
	}
	return newPublisher(topic, writer)
}

func newPublisher(topic string, writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{topic: topic, writer: writer}
}

// PublishSynced implements domain.SyncPublisher.
func (p *KafkaPublisher) PublishSynced(ctx context.Context, event domain.SyncEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Collection),
		Value: body,
		Time:  event.SyncedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCollectionSynced)},
			{Key: "run_id", Value: []byte(event.RunID)},
		},
	})
}

// Topic returns the destination topic.
func (p *KafkaPublisher) Topic() string {
	return p.topic
}

// Close releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
