package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/LumiGrid/pkg/errors"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	err     error
	closed  int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

type observed struct {
	topic, direction string
	failed           bool
}

func newTestProducer(w Writer) (*Producer, *[]observed) {
	var seen []observed
	cfg := ProducerConfig{
		Brokers:         []string{"localhost:9092"},
		MaxMessageBytes: 64,
		Observer: func(topic, direction string, err error) {
			seen = append(seen, observed{topic, direction, err != nil})
		},
	}
	return NewProducerWithWriter(w, cfg, nil), &seen
}

func TestValidateProducerConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}, MaxRetries: -1}))
}

func TestPublish(t *testing.T) {
	t.Parallel()
	w := &fakeWriter{}
	p, seen := newTestProducer(w)

	err := p.Publish(context.Background(), &Message{
		Topic:   TopicCalculationRequested,
		Key:     []byte("run-1"),
		Value:   []byte(`{"run_id":"run-1"}`),
		Headers: map[string]string{"event_type": EventCalculationRequested},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, "run-1", string(w.written[0].Key))
	assert.False(t, w.written[0].Time.IsZero())
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte(EventCalculationRequested)}}, w.written[0].Headers)
	assert.Equal(t, []observed{{TopicCalculationRequested, "out", false}}, *seen)

	sent, failed := p.Stats()
	assert.Equal(t, int64(1), sent)
	assert.Zero(t, failed)
}

func TestPublish_Validation(t *testing.T) {
	t.Parallel()
	p, _ := newTestProducer(&fakeWriter{})
	ctx := context.Background()

	tests := []struct {
		name string
		msg  *Message
	}{
		{"no topic", &Message{Value: []byte("x")}},
		{"no value", &Message{Topic: "t"}},
		{"too large", &Message{Topic: "t", Value: make([]byte, 65)}},
	}
	for _, tt := range tests {
		err := p.Publish(ctx, tt.msg)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), tt.name)
	}
}

func TestPublish_WriterError(t *testing.T) {
	t.Parallel()
	p, seen := newTestProducer(&fakeWriter{err: errors.New("leader not available")})

	err := p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("x")})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessagingFailed))
	assert.Equal(t, []observed{{"t", "out", true}}, *seen)
	_, failed := p.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestProducer_Close(t *testing.T) {
	t.Parallel()
	w := &fakeWriter{}
	p, _ := newTestProducer(w)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	err := p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("x")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestRequiredAcksAndCompression(t *testing.T) {
	t.Parallel()
	assert.Equal(t, kafka.RequireAll, requiredAcks("all"))
	assert.Equal(t, kafka.RequireNone, requiredAcks("none"))
	assert.Equal(t, kafka.RequireOne, requiredAcks(""))
	assert.Equal(t, kafka.Zstd, compression("zstd"))
	assert.Equal(t, kafka.Compression(0), compression("brotli"))
}
