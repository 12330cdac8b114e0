package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

const (
	TopicCalculationRequested = "lumigrid.calculation.requested"
	TopicCalculationCompleted = "lumigrid.calculation.completed"
	TopicCalculationFailed    = "lumigrid.calculation.failed"

	deadLetterSuffix = ".dlq"
	schemaVersion    = "v1"
	sourceService    = "lumigrid"
)

// Event types carried in the envelope.
const (
	EventCalculationRequested = "calculation.requested"
	EventCalculationCompleted = "calculation.completed"
	EventCalculationFailed    = "calculation.failed"
)

// DeadLetterTopic names the dead-letter topic for topic.
func DeadLetterTopic(topic string) string { return topic + deadLetterSuffix }

// EventEnvelope wraps every payload with routing metadata.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	RequestID     string            `json:"request_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CalculationRequestedPayload asks a worker to compute a pending run.
type CalculationRequestedPayload struct {
	RunID   string          `json:"run_id"`
	Request json.RawMessage `json:"request"`
}

// CalculationCompletedPayload announces a finished run.
type CalculationCompletedPayload struct {
	RunID       string  `json:"run_id"`
	ReportKey   string  `json:"report_key,omitempty"`
	PointCount  int     `json:"point_count"`
	AveragePPFD float64 `json:"average_ppfd"`
	Uniformity  float64 `json:"uniformity"`
	DurationMS  int64   `json:"duration_ms"`
}

// CalculationFailedPayload announces a failed run.
type CalculationFailedPayload struct {
	RunID string `json:"run_id"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

func NewEventEnvelope(eventType string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        sourceService,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "event has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode payload")
	}
	return nil
}

// ToMessage encodes the envelope for topic, keyed by key.
func (e *EventEnvelope) ToMessage(topic, key string) (*Message, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := map[string]string{
		"event_type":     e.EventType,
		"source_service": e.Source,
		"schema_version": e.SchemaVersion,
	}
	if e.RequestID != "" {
		headers["request_id"] = e.RequestID
	}
	return &Message{Topic: topic, Key: []byte(key), Value: val, Headers: headers, Timestamp: e.Timestamp}, nil
}

// DecodeEnvelope parses a consumed message.
func DecodeEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// TopicConfig describes a topic to provision.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	Retention         time.Duration
}

// DefaultTopics lists the calculation topics and their dead-letter topics.
func DefaultTopics(replication int) []TopicConfig {
	if replication <= 0 {
		replication = 1
	}
	week := 7 * 24 * time.Hour
	return []TopicConfig{
		{Name: TopicCalculationRequested, NumPartitions: 6, ReplicationFactor: replication, Retention: week},
		{Name: TopicCalculationCompleted, NumPartitions: 6, ReplicationFactor: replication, Retention: week},
		{Name: TopicCalculationFailed, NumPartitions: 3, ReplicationFactor: replication, Retention: week},
		{Name: DeadLetterTopic(TopicCalculationRequested), NumPartitions: 1, ReplicationFactor: replication, Retention: 4 * week},
	}
}

// Conn abstracts kafka.Conn for testing.
type Conn interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager provisions topics.
type TopicManager struct {
	conn   Conn
	logger logging.Logger
}

func NewTopicManager(brokers []string, log logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingFailed, "failed to dial kafka")
	}
	return NewTopicManagerWithConn(conn, log), nil
}

func NewTopicManagerWithConn(conn Conn, log logging.Logger) *TopicManager {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: log}
}

// EnsureTopics creates missing topics; existing ones are left untouched.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	existing, err := m.ListTopics(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t] = true
	}
	var create []kafka.TopicConfig
	for _, t := range topics {
		if t.Name == "" || t.NumPartitions <= 0 || t.ReplicationFactor <= 0 {
			return errors.Newf(errors.ErrCodeValidation, "invalid topic config %+v", t)
		}
		if have[t.Name] {
			continue
		}
		kc := kafka.TopicConfig{Topic: t.Name, NumPartitions: t.NumPartitions, ReplicationFactor: t.ReplicationFactor}
		if t.Retention > 0 {
			kc.ConfigEntries = append(kc.ConfigEntries, kafka.ConfigEntry{
				ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(t.Retention.Milliseconds(), 10),
			})
		}
		create = append(create, kc)
	}
	if len(create) == 0 {
		return nil
	}
	if err := m.conn.CreateTopics(create...); err != nil {
		return errors.Wrap(err, errors.ErrCodeMessagingFailed, "failed to create topics")
	}
	for _, t := range create {
		m.logger.Info("topic created", logging.String("topic", t.Topic))
	}
	return nil
}

// ListTopics returns the distinct topic names on the cluster.
func (m *TopicManager) ListTopics(ctx context.Context) ([]string, error) {
	partitions, err := m.conn.ReadPartitions()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingFailed, "failed to read partitions")
	}
	seen := make(map[string]bool)
	var topics []string
	for _, p := range partitions {
		if !seen[p.Topic] {
			seen[p.Topic] = true
			topics = append(topics, p.Topic)
		}
	}
	return topics, nil
}

func (m *TopicManager) Close() error { return m.conn.Close() }
