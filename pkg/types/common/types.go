package common

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ID is a string alias for UUID v4.
type ID string

// NewID generates a new UUID v4.
func NewID() ID {
	return ID(uuid.New().String())
}

// Validate checks if the ID is a valid UUID.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}
	return nil
}

// Timestamp is a time.Time alias serialized as RFC 3339 in UTC.
type Timestamp time.Time

// NewTimestamp returns the current UTC time as a Timestamp.
func NewTimestamp() Timestamp {
	return Timestamp(time.Now().UTC())
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed.UTC())
	return nil
}

// Pagination limits.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 500
)

// Pagination selects a window of a listing.
type Pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total,omitempty"`
}

// NewPagination clamps limit and offset into valid bounds.
func NewPagination(limit, offset int) Pagination {
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// Validate checks that the window is within bounds.
func (p Pagination) Validate() error {
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return fmt.Errorf("limit must be between 1 and %d", MaxPageLimit)
	}
	if p.Offset < 0 {
		return fmt.Errorf("offset must be >= 0")
	}
	return nil
}

// ErrorDetail is the error body of an API response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// APIResponse is the envelope of every HTTP API response.
type APIResponse[T any] struct {
	Success    bool         `json:"success"`
	Data       T            `json:"data,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
	Pagination *Pagination  `json:"pagination,omitempty"`
	RequestID  string       `json:"request_id,omitempty"`
	Timestamp  Timestamp    `json:"timestamp"`
}

// NewSuccessResponse creates a successful APIResponse.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{Success: true, Data: data, Timestamp: NewTimestamp()}
}

// NewPaginatedResponse creates a successful APIResponse carrying a page.
func NewPaginatedResponse[T any](data T, p Pagination) APIResponse[T] {
	return APIResponse[T]{Success: true, Data: data, Pagination: &p, Timestamp: NewTimestamp()}
}

// NewErrorResponse creates an error APIResponse.
func NewErrorResponse(code, message, detail string) APIResponse[any] {
	return APIResponse[any]{
		Error:     &ErrorDetail{Code: code, Message: message, Detail: detail},
		Timestamp: NewTimestamp(),
	}
}

// HealthStatus indicates the health of a component or service.
type HealthStatus string

const (
	HealthUp       HealthStatus = "up"
	HealthDown     HealthStatus = "down"
	HealthDegraded HealthStatus = "degraded"
	HealthDisabled HealthStatus = "disabled"
)

// ComponentHealth is the health of one backing dependency.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency_ns"`
	Message string        `json:"message,omitempty"`
}

// OverallHealth folds component states: any down makes the whole service
// down, any degraded makes it degraded. Disabled components are ignored.
func OverallHealth(components []ComponentHealth) HealthStatus {
	status := HealthUp
	for _, c := range components {
		switch c.Status {
		case HealthDown:
			return HealthDown
		case HealthDegraded:
			status = HealthDegraded
		}
	}
	return status
}

// BaseEvent carries the envelope fields of a published event.
type BaseEvent struct {
	ID          string    `json:"event_id"`
	Type        string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	AggregateID string    `json:"aggregate_id"`
}

// NewBaseEvent stamps a new event for the given aggregate.
func NewBaseEvent(eventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		OccurredAt:  time.Now().UTC(),
		AggregateID: aggregateID,
	}
}
