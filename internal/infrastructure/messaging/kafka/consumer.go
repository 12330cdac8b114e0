package kafka

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// Dead-letter headers.
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderError         = "x-error"
	HeaderAttempts      = "x-attempts"
)

// RetryConfig defines per-message retry behavior.
type RetryConfig struct {
	MaxRetries      int
	Backoff         time.Duration
	MaxBackoff      time.Duration
	DeadLetterTopic string
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topics          []string
	AutoOffsetReset string
	MaxWait         time.Duration
	// QueueCapacity bounds prefetched messages; 0 keeps the reader default.
	QueueCapacity int
	Retry         RetryConfig
	Observer      Observer
}

// ConsumerConfigFrom maps the kafka config section. Dead letters for a
// topic go to "<topic>.dlq".
func ConsumerConfigFrom(cfg config.KafkaConfig, topic string, backoff time.Duration) ConsumerConfig {
	return ConsumerConfig{
		Brokers:         cfg.Brokers,
		GroupID:         cfg.GroupID,
		Topics:          []string{topic},
		AutoOffsetReset: cfg.AutoOffsetReset,
		Retry: RetryConfig{
			MaxRetries:      cfg.MaxRetries,
			Backoff:         backoff,
			DeadLetterTopic: DeadLetterTopic(topic),
		},
	}
}

// Reader abstracts kafka.Reader for testing.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer dispatches messages to per-topic handlers. A message is committed
// once it is handled or dead-lettered, so a poison message never blocks its
// partition.
type Consumer struct {
	reader     Reader
	deadLetter Publisher
	config     ConsumerConfig
	logger     logging.Logger
	observe    Observer

	mu       sync.RWMutex
	handlers map[string]MessageHandler

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	processed    atomic.Int64
	deadLettered atomic.Int64
}

// NewConsumer creates a group consumer. deadLetter may be nil, in which case
// exhausted messages are logged and dropped.
func NewConsumer(cfg ConsumerConfig, deadLetter Publisher, log logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	maxWait := cfg.MaxWait
	if maxWait == 0 {
		maxWait = time.Second
	}
	readerCfg := kafka.ReaderConfig{
		Brokers:       cfg.Brokers,
		GroupID:       cfg.GroupID,
		GroupTopics:   cfg.Topics,
		MinBytes:      1,
		MaxBytes:      10 << 20,
		MaxWait:       maxWait,
		QueueCapacity: cfg.QueueCapacity,
		StartOffset:   kafka.FirstOffset,
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}
	return NewConsumerWithReader(kafka.NewReader(readerCfg), deadLetter, cfg, log), nil
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(r Reader, deadLetter Publisher, cfg ConsumerConfig, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver
	}
	if cfg.Retry.Backoff == 0 {
		cfg.Retry.Backoff = time.Second
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = 30 * time.Second
	}
	return &Consumer{
		reader:     r,
		deadLetter: deadLetter,
		config:     cfg,
		logger:     log.Named("kafka_consumer"),
		observe:    obs,
		handlers:   make(map[string]MessageHandler),
	}
}

func (c *Consumer) Subscribe(topic string, h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = h
	c.logger.Info("subscribed", logging.String("topic", topic))
}

// Start runs the fetch loop in the background until Close or ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()
	c.logger.Info("kafka consumer started", logging.String("group", c.config.GroupID))
	return nil
}

func (c *Consumer) loop(ctx context.Context) {
	for ctx.Err() == nil {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.dispatch(ctx, m)
	}
}

func (c *Consumer) dispatch(ctx context.Context, m kafka.Message) {
	msg := fromKafkaMessage(m)

	c.mu.RLock()
	h, ok := c.handlers[m.Topic]
	c.mu.RUnlock()

	if !ok {
		c.logger.Warn("no handler for topic", logging.String("topic", m.Topic))
	} else if err := c.process(ctx, msg, h); err != nil {
		// Shutdown mid-retry: leave uncommitted for redelivery.
		return
	}
	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.Error("commit failed", logging.String("topic", m.Topic), logging.Int64("offset", m.Offset), logging.Err(err))
	}
}

// process returns an error only when ctx ended before the message settled.
func (c *Consumer) process(ctx context.Context, msg *Message, h MessageHandler) error {
	backoff := c.config.Retry.Backoff
	var err error
	attempts := 0
	for {
		attempts++
		if err = h(ctx, msg); err == nil {
			c.processed.Add(1)
			c.observe(msg.Topic, "in", nil)
			return nil
		}
		if attempts > c.config.Retry.MaxRetries {
			break
		}
		c.logger.Warn("handler failed, retrying",
			logging.String("topic", msg.Topic),
			logging.Int("attempt", attempts),
			logging.Duration("backoff", backoff),
			logging.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.config.Retry.MaxBackoff {
			backoff = c.config.Retry.MaxBackoff
		}
	}

	c.observe(msg.Topic, "in", err)
	c.logger.Error("message failed after retries",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Int("attempts", attempts),
		logging.Err(err))

	if c.deadLetter == nil || c.config.Retry.DeadLetterTopic == "" {
		return nil
	}
	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = msg.Topic
	headers[HeaderError] = err.Error()
	headers[HeaderAttempts] = strconv.Itoa(attempts)
	dl := &Message{Topic: c.config.Retry.DeadLetterTopic, Key: msg.Key, Value: msg.Value, Headers: headers}
	if dlErr := c.deadLetter.Publish(ctx, dl); dlErr != nil {
		c.logger.Error("dead-letter publish failed", logging.Err(dlErr))
		return nil
	}
	c.deadLettered.Add(1)
	return nil
}

// Stats returns processed and dead-lettered counts.
func (c *Consumer) Stats() (processed, deadLettered int64) {
	return c.processed.Load(), c.deadLettered.Load()
}

// Close stops the loop and closes the reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	err := c.reader.Close()
	c.logger.Info("kafka consumer closed", logging.Int64("processed", c.processed.Load()))
	return err
}

func fromKafkaMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "consumer group id required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one topic required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.Newf(errors.ErrCodeValidation, "invalid auto offset reset %q", cfg.AutoOffsetReset)
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max retries must be >= 0")
	}
	return nil
}
