// Package kafka carries calculation jobs and their outcome events over
// segmentio/kafka-go.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeProducerClosed, "producer closed")

// Message is a record read from or written to a topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one consumed message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher is what the application layer depends on.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// Observer is told about every publish or consume outcome, for metrics.
type Observer func(topic, direction string, err error)

func nopObserver(string, string, error) {}

// ProducerConfig holds configuration for the Producer.
type ProducerConfig struct {
	Brokers         []string
	Acks            string
	Compression     string
	MaxRetries      int
	BatchSize       int
	BatchTimeout    time.Duration
	MaxMessageBytes int
	WriteTimeout    time.Duration
	Observer        Observer
}

// ProducerConfigFrom maps the kafka config section.
func ProducerConfigFrom(cfg config.KafkaConfig) ProducerConfig {
	return ProducerConfig{
		Brokers:      cfg.Brokers,
		Acks:         cfg.RequiredAcks,
		Compression:  cfg.Compression,
		MaxRetries:   cfg.MaxRetries,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
}

// Writer abstracts kafka.Writer for testing.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes messages keyed by run ID so one run's events stay
// ordered on a partition.
type Producer struct {
	writer  Writer
	config  ProducerConfig
	logger  logging.Logger
	observe Observer
	closed  atomic.Bool
	sent    atomic.Int64
	failed  atomic.Int64
}

func (c *ProducerConfig) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = 4 << 20
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// NewProducer creates a Producer backed by a kafka.Writer.
func NewProducer(cfg ProducerConfig, log logging.Logger) (*Producer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            cfg.MaxRetries + 1,
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           requiredAcks(cfg.Acks),
		Compression:            compression(cfg.Compression),
		AllowAutoTopicCreation: false,
	}
	return NewProducerWithWriter(w, cfg, log), nil
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w Writer, cfg ProducerConfig, log logging.Logger) *Producer {
	cfg.applyDefaults()
	if log == nil {
		log = logging.NewNopLogger()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver
	}
	return &Producer{writer: w, config: cfg, logger: log.Named("kafka_producer"), observe: obs}
}

func requiredAcks(s string) kafka.RequiredAcks {
	switch s {
	case "none":
		return kafka.RequireNone
	case "all":
		return kafka.RequireAll
	default:
		return kafka.RequireOne
	}
}

func compression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}

// Publish writes a single message.
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if msg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "topic required")
	}
	if len(msg.Value) == 0 {
		return errors.New(errors.ErrCodeValidation, "message value required")
	}
	if len(msg.Value) > p.config.MaxMessageBytes {
		return errors.Newf(errors.ErrCodeValidation, "message of %d bytes exceeds %d", len(msg.Value), p.config.MaxMessageBytes)
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		p.failed.Add(1)
		p.observe(msg.Topic, "out", err)
		return errors.Wrap(err, errors.ErrCodeMessagingFailed, "publish failed").WithDetail(msg.Topic)
	}
	p.sent.Add(1)
	p.observe(msg.Topic, "out", nil)
	p.logger.Debug("message published",
		logging.String("topic", msg.Topic),
		logging.Duration("latency", time.Since(start)))
	return nil
}

// Stats returns sent and failed counts.
func (p *Producer) Stats() (sent, failed int64) {
	return p.sent.Load(), p.failed.Load()
}

// Close is idempotent.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("sent", p.sent.Load()))
	return err
}

func toKafkaMessage(msg *Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}

func ValidateProducerConfig(cfg ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max retries must be >= 0")
	}
	return nil
}
