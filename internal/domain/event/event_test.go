package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"transaction created", TypeTransactionCreated, true},
		{"status changed", TypeStatusChanged, true},
		{"transaction rejected", TypeTransactionRejected, true},
		{"transaction completed", TypeTransactionCompleted, true},
		{"transaction discarded", TypeTransactionDiscarded, true},
		{"permissions loaded", TypePermissionsLoaded, true},
		{"templates imported", TypeTemplatesImported, true},
		{"unknown type", Type("instance.created"), false},
		{"empty string", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_String(t *testing.T) {
	if got := TypeStatusChanged.String(); got != "transaction.status_changed" {
		t.Errorf("Type.String() = %v, want %v", got, "transaction.status_changed")
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		KeyNewStatus: "Data Entry Completed-Portal",
	}

	event := NewEvent(TypeStatusChanged, "ILC-1700000000000-a1b2c3", payload)

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TypeStatusChanged {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeStatusChanged)
	}
	if event.TransactionRef != "ILC-1700000000000-a1b2c3" {
		t.Errorf("Event TransactionRef = %v", event.TransactionRef)
	}
	if event.GetPayloadString(KeyNewStatus) != "Data Entry Completed-Portal" {
		t.Errorf("Event Payload[%s] = %v", KeyNewStatus, event.Payload[KeyNewStatus])
	}
	if event.CorrelationID == "" || event.CorrelationID == event.ID {
		t.Error("Event CorrelationID should be set and distinct from ID")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	event := NewEvent(TypeTransactionDiscarded, "", nil)
	if event.Payload == nil {
		t.Fatal("Event Payload should be initialised")
	}
	if got := event.WithPayload(KeyReason, "user").GetPayloadString(KeyReason); got != "user" {
		t.Errorf("WithPayload on empty payload = %v", got)
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	event := NewEventWithCorrelation(TypeTransactionCompleted, "BG-1", nil, "session-42")

	if event.CorrelationID != "session-42" {
		t.Errorf("Event CorrelationID = %v, want %v", event.CorrelationID, "session-42")
	}
	if event.TransactionRef != "BG-1" {
		t.Errorf("Event TransactionRef = %v, want %v", event.TransactionRef, "BG-1")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeTransactionCreated, "ILC-1", map[string]interface{}{
		"key1": "value1",
	})

	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.Payload["key1"] != "value1" || modified.Payload["key2"] != "value2" {
		t.Errorf("Modified payload = %v", modified.Payload)
	}
	if modified.ID != original.ID || modified.TransactionRef != original.TransactionRef || modified.CorrelationID != original.CorrelationID {
		t.Error("Modified event should keep identity fields")
	}
}

func TestEvent_PayloadAccessors(t *testing.T) {
	event := NewEvent(TypeTemplatesImported, "", map[string]interface{}{
		"status":  "issued",
		"int64":   int64(100),
		"int":     50,
		"float64": 75.5,
		"flag":    true,
	})

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"string", event.GetPayloadString("status"), "issued"},
		{"non-string", event.GetPayloadString("int"), ""},
		{"int64", event.GetPayloadInt("int64"), int64(100)},
		{"int", event.GetPayloadInt("int"), int64(50)},
		{"float64 truncated", event.GetPayloadInt("float64"), int64(75)},
		{"missing int", event.GetPayloadInt("nope"), int64(0)},
		{"bool", event.GetPayloadBool("flag"), true},
		{"non-bool", event.GetPayloadBool("status"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
