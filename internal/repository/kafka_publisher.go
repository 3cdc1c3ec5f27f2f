package repository

import (
	"context"
	"fmt"

	"WhyAgent/internal/domain/models"
	pkgkafka "WhyAgent/pkg/kafka"
)

// messagePublisher is the part of pkg/kafka.Producer the publisher needs.
type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher publishes prediction events keyed by ticker.
type KafkaPublisher struct {
	producer messagePublisher
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer messagePublisher, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, e *models.PredictionEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(e.Ticker), e); err != nil {
		return fmt.Errorf("publish prediction %s: %w", e.ID, err)
	}
	return nil
}

// PublishTrainRequests enqueues one training request per ticker on topic.
func (p *KafkaPublisher) PublishTrainRequests(ctx context.Context, topic string, reqs []models.TrainRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(reqs))
	for i := range reqs {
		msgs[i] = pkgkafka.Message{Key: []byte(reqs[i].Ticker), Value: reqs[i]}
	}
	return p.producer.PublishBatch(ctx, topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishPrediction(context.Context, *models.PredictionEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
