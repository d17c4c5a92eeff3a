package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by publishers and subscribers
const (
	KeyProductCode    = "product_code"
	KeyEventCode      = "event_code"
	KeyStageName      = "stage_name"
	KeyPreviousStatus = "previous_status"
	KeyNewStatus      = "new_status"
	KeyChannel        = "channel"
	KeyUserID         = "user_id"
	KeyReason         = "reason"
	KeyCount          = "count"
)

// Event represents a domain event
type Event struct {
	ID             string                 `json:"id"`
	Type           Type                   `json:"type"`
	TransactionRef string                 `json:"transaction_ref"`
	Payload        map[string]interface{} `json:"payload"`
	Timestamp      time.Time              `json:"timestamp"`
	CorrelationID  string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, transactionRef string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, transactionRef, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain,
// typically the lifecycle session ID
func NewEventWithCorrelation(eventType Type, transactionRef string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		TransactionRef: transactionRef,
		Payload:        payload,
		Timestamp:      time.Now(),
		CorrelationID:  correlationID,
	}
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
