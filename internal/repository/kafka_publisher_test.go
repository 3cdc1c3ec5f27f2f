package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhyAgent/internal/domain/models"
	pkgkafka "WhyAgent/pkg/kafka"
)

type recordedMessage struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	sent   []recordedMessage
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, recordedMessage{topic: topic, key: string(key), value: b})
	return nil
}

func (f *fakeProducer) PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error {
	for _, m := range messages {
		if err := f.Publish(ctx, topic, m.Key, m.Value); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherKeysByTicker(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaPublisher(fp, "whyagent.predictions")

	ev := &models.PredictionEvent{ID: "e1", Ticker: "AAPL", PredPct: 0.004, AsOf: time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, pub.PublishPrediction(context.Background(), ev))

	require.Len(t, fp.sent, 1)
	assert.Equal(t, "whyagent.predictions", fp.sent[0].topic)
	assert.Equal(t, "AAPL", fp.sent[0].key)

	var got models.PredictionEvent
	require.NoError(t, json.Unmarshal(fp.sent[0].value, &got))
	assert.Equal(t, "e1", got.ID)
	assert.InDelta(t, 0.004, got.PredPct, 1e-12)

	require.NoError(t, pub.Close())
	assert.True(t, fp.closed)
}

func TestKafkaPublisherTrainRequests(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaPublisher(fp, "whyagent.predictions")

	err := pub.PublishTrainRequests(context.Background(), "whyagent.train-requests", []models.TrainRequest{{Ticker: "AAPL"}, {Ticker: "MSFT"}})
	require.NoError(t, err)
	require.Len(t, fp.sent, 2)
	assert.Equal(t, "MSFT", fp.sent[1].key)
	assert.Equal(t, "whyagent.train-requests", fp.sent[1].topic)
}
