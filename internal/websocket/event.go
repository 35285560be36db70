package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to the entity
type EventType string

const (
	EventTypeSnapshot EventType = "snapshot"
	EventTypeFailed   EventType = "failed"
	EventTypeExpired  EventType = "expired"
	EventTypeRejected EventType = "rejected"
)

// EntityType represents the resource the event is about
type EntityType string

const (
	EntityTypeCategories EntityType = "categories"
	EntityTypeIncomes    EntityType = "incomes"
	EntityTypeExpenses   EntityType = "expenses"
	EntityTypeDashboard  EntityType = "dashboard"
	EntityTypeSession    EntityType = "session"
	EntityTypeCommand    EntityType = "command"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, resource, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`               // Combined type e.g. "incomes.snapshot"
	Entity    EntityType  `json:"entity"`             // Entity type e.g. "incomes"
	Resource  string      `json:"resource,omitempty"` // Orchestrator resource key e.g. "categories:income"
	Payload   interface{} `json:"payload"`            // Full snapshot
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Snapshot creates a <entity>.snapshot event carrying a whole re-fetched collection
func Snapshot(entity EntityType, resource string, payload interface{}) Event {
	evt := NewEvent(EventTypeSnapshot, entity, payload)
	evt.Resource = resource
	return evt
}

// Failed creates a <entity>.failed event carrying the surfaced error message
func Failed(entity EntityType, resource string, message string) Event {
	evt := NewEvent(EventTypeFailed, entity, map[string]string{"message": message})
	evt.Resource = resource
	return evt
}

// SessionExpired creates a session.expired event telling the UI where to go
func SessionExpired(redirect string) Event {
	return NewEvent(EventTypeExpired, EntityTypeSession, map[string]string{"redirect": redirect})
}

// IsSessionExpired reports whether e ends the session
func (e Event) IsSessionExpired() bool {
	return e.Entity == EntityTypeSession && e.Type == fmt.Sprintf("%s.%s", EntityTypeSession, EventTypeExpired)
}

// Rejected creates a command.rejected event answering one bad inbound command
func Rejected(cmd Command, message string) Event {
	evt := NewEvent(EventTypeRejected, EntityTypeCommand, map[string]string{"action": cmd.Action, "message": message})
	evt.Resource = cmd.Resource
	return evt
}
