// Package testutil provides shared test helpers for LumiGrid packages.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/prometheus"
)

// MockLogger implements logging.Logger and records every entry. Child
// loggers from With and Named share the parent's record.
type MockLogger struct {
	mu       *sync.Mutex
	messages *[]LogMessage
	name     string
	fields   []logging.Field
}

// LogMessage represents a single log entry captured by MockLogger.
type LogMessage struct {
	Level   string
	Logger  string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the named field, or nil.
func (m LogMessage) Field(key string) interface{} {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func NewMockLogger() *MockLogger {
	return &MockLogger{mu: &sync.Mutex{}, messages: &[]LogMessage{}}
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)

	m.mu.Lock()
	defer m.mu.Unlock()
	*m.messages = append(*m.messages, LogMessage{Level: level, Logger: m.name, Message: msg, Fields: all})
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }

func (m *MockLogger) With(fields ...logging.Field) logging.Logger {
	child := *m
	child.fields = append(append([]logging.Field{}, m.fields...), fields...)
	return &child
}

func (m *MockLogger) Named(name string) logging.Logger {
	child := *m
	if m.name == "" {
		child.name = name
	} else {
		child.name = m.name + "." + name
	}
	return &child
}

func (m *MockLogger) WithContext(ctx context.Context) logging.Logger {
	var fields []logging.Field
	if id := logging.RequestIDFrom(ctx); id != "" {
		fields = append(fields, logging.String("request_id", id))
	}
	if id := logging.RunIDFrom(ctx); id != "" {
		fields = append(fields, logging.String("run_id", id))
	}
	if len(fields) == 0 {
		return m
	}
	return m.With(fields...)
}

func (m *MockLogger) WithError(err error) logging.Logger {
	return m.With(logging.Err(err))
}

func (m *MockLogger) Sync() error { return nil }

// GetMessages returns a copy of all logged messages.
func (m *MockLogger) GetMessages() []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]LogMessage, len(*m.messages))
	copy(result, *m.messages)
	return result
}

// Clear removes all logged messages.
func (m *MockLogger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.messages = (*m.messages)[:0]
}

// HasMessage checks if a message with the given level and content was logged.
func (m *MockLogger) HasMessage(level, msg string) bool {
	_, ok := m.Find(level, msg)
	return ok
}

// Find returns the first entry with the given level and message.
func (m *MockLogger) Find(level, msg string) (LogMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logged := range *m.messages {
		if logged.Level == level && logged.Message == msg {
			return logged, true
		}
	}
	return LogMessage{}, false
}

// NewTestMetrics registers the application metrics on a fresh registry.
func NewTestMetrics(t testing.TB) (prometheus.MetricsCollector, *prometheus.AppMetrics) {
	t.Helper()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "lumigrid_test"}, nil)
	if err != nil {
		t.Fatalf("metrics collector: %v", err)
	}
	return collector, prometheus.NewAppMetrics(collector)
}

var _ logging.Logger = (*MockLogger)(nil)
