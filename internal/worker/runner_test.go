package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LumiGrid/internal/testutil"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

type fakeJobs struct {
	mu       sync.Mutex
	payloads []*kafka.CalculationRequestedPayload
	err      error
}

func (f *fakeJobs) HandleJob(_ context.Context, p *kafka.CalculationRequestedPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return f.err
}

type fakeConsumer struct {
	mu       sync.Mutex
	topics   []string
	started  bool
	closed   bool
	startErr error
}

func (c *fakeConsumer) Subscribe(topic string, _ kafka.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
}

func (c *fakeConsumer) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.started = true
	return nil
}

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConsumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func requestMessage(t *testing.T, eventType string, payload interface{}) *kafka.Message {
	t.Helper()
	env, err := kafka.NewEventEnvelope(eventType, payload)
	require.NoError(t, err)
	msg, err := env.ToMessage(kafka.TopicCalculationRequested, "run-1")
	require.NoError(t, err)
	return msg
}

func TestHandleMessage_RunsJob(t *testing.T) {
	t.Parallel()
	jobs := &fakeJobs{}
	r := NewRunner(config.WorkerConfig{}, jobs, nil, nil, nil)

	msg := requestMessage(t, kafka.EventCalculationRequested, kafka.CalculationRequestedPayload{
		RunID:   "run-1",
		Request: json.RawMessage(`{"room":{"width":2,"length":2,"height":3}}`),
	})
	require.NoError(t, r.HandleMessage(context.Background(), msg))

	require.Len(t, jobs.payloads, 1)
	assert.Equal(t, "run-1", jobs.payloads[0].RunID)
	assert.JSONEq(t, `{"room":{"width":2,"length":2,"height":3}}`, string(jobs.payloads[0].Request))
}

func TestHandleMessage_ReturnsJobError(t *testing.T) {
	t.Parallel()
	jobs := &fakeJobs{err: errors.New(errors.ErrCodeDatabaseError, "connection reset")}
	r := NewRunner(config.WorkerConfig{}, jobs, nil, nil, nil)

	msg := requestMessage(t, kafka.EventCalculationRequested, kafka.CalculationRequestedPayload{RunID: "run-1"})
	err := r.HandleMessage(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDatabaseError, errors.GetCode(err))
}

func TestHandleMessage_DropsUnusableMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  func(t *testing.T) *kafka.Message
		log  string
	}{
		{
			name: "empty value",
			msg:  func(*testing.T) *kafka.Message { return &kafka.Message{Topic: kafka.TopicCalculationRequested} },
			log:  "dropping message: malformed envelope",
		},
		{
			name: "not json",
			msg: func(*testing.T) *kafka.Message {
				return &kafka.Message{Topic: kafka.TopicCalculationRequested, Value: []byte("{")}
			},
			log: "dropping message: malformed envelope",
		},
		{
			name: "wrong event type",
			msg: func(t *testing.T) *kafka.Message {
				return requestMessage(t, kafka.EventCalculationCompleted, kafka.CalculationCompletedPayload{RunID: "run-1"})
			},
			log: "dropping message: unexpected event type",
		},
		{
			name: "null payload",
			msg: func(t *testing.T) *kafka.Message {
				return requestMessage(t, kafka.EventCalculationRequested, nil)
			},
			log: "dropping message: malformed payload",
		},
		{
			name: "missing run id",
			msg: func(t *testing.T) *kafka.Message {
				return requestMessage(t, kafka.EventCalculationRequested, kafka.CalculationRequestedPayload{})
			},
			log: "dropping message: payload has no run id",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			jobs := &fakeJobs{}
			log := testutil.NewMockLogger()
			r := NewRunner(config.WorkerConfig{}, jobs, nil, nil, log)

			require.NoError(t, r.HandleMessage(context.Background(), tt.msg(t)))
			assert.Empty(t, jobs.payloads)
			assert.True(t, log.HasMessage("error", tt.log), "want log %q", tt.log)
		})
	}
}

func TestRun_StartsOneConsumerPerSlot(t *testing.T) {
	t.Parallel()
	var (
		mu        sync.Mutex
		consumers []*fakeConsumer
	)
	factory := func(int) (Consumer, error) {
		mu.Lock()
		defer mu.Unlock()
		c := &fakeConsumer{}
		consumers = append(consumers, c)
		return c, nil
	}
	r := NewRunner(config.WorkerConfig{Concurrency: 3}, &fakeJobs{}, factory, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(consumers) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	for _, c := range consumers {
		assert.True(t, c.started)
		assert.True(t, c.isClosed())
		assert.Equal(t, []string{kafka.TopicCalculationRequested}, c.topics)
	}
}

func TestRun_StartFailureClosesStartedConsumers(t *testing.T) {
	t.Parallel()
	first := &fakeConsumer{}
	second := &fakeConsumer{startErr: errors.New(errors.ErrCodeServiceUnavailable, "broker unreachable")}
	slots := []*fakeConsumer{first, second}
	factory := func(i int) (Consumer, error) { return slots[i], nil }

	r := NewRunner(config.WorkerConfig{Concurrency: 2}, &fakeJobs{}, factory, nil, nil)
	err := r.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "consumer 1")
	assert.True(t, first.isClosed())
	assert.True(t, second.isClosed())
}

func TestRun_FactoryFailure(t *testing.T) {
	t.Parallel()
	first := &fakeConsumer{}
	factory := func(i int) (Consumer, error) {
		if i == 0 {
			return first, nil
		}
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}

	r := NewRunner(config.WorkerConfig{Concurrency: 2}, &fakeJobs{}, factory, nil, nil)
	err := r.Run(context.Background())

	require.Error(t, err)
	assert.True(t, first.isClosed())
}

func TestNewRunner_MinimumOneSlot(t *testing.T) {
	t.Parallel()
	r := NewRunner(config.WorkerConfig{Concurrency: 0}, &fakeJobs{}, nil, nil, nil)
	assert.Equal(t, 1, r.concurrency)
}
