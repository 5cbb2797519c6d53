package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeOccurrenceGenerated = "occurrence.generated"
	TypeDefinitionExhausted = "definition.exhausted"
	TypeDefinitionExpired   = "definition.expired"
	TypeGenerationFailed    = "generation.failed"
	TypeDefinitionPaused    = "definition.paused"
	TypeDefinitionResumed   = "definition.resumed"
)

// Event is a notification about one recurrence definition.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// DefinitionID is the recurrence definition the event is about
	DefinitionID uuid.UUID `json:"definition_id"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// OccurrencePayload accompanies TypeOccurrenceGenerated.
type OccurrencePayload struct {
	TaskID           uuid.UUID `json:"task_id"`
	OccurrenceNumber int       `json:"occurrence_number"`
	DueDate          string    `json:"due_date"`
	Title            string    `json:"title"`
}

// FailurePayload accompanies TypeGenerationFailed.
type FailurePayload struct {
	Error string `json:"error"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// New creates an event of the given type. A nil payload leaves Payload empty.
func New(eventType string, definitionID uuid.UUID, payload any, now time.Time) (*Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	return &Event{
		ID:           uuid.New(),
		Type:         eventType,
		DefinitionID: definitionID,
		Payload:      raw,
		CreatedAt:    now.UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}

// Discard is an EventEmitter that drops every event.
type Discard struct{}

// EmitEvent implements EventEmitter.
func (Discard) EmitEvent(context.Context, *Event) error { return nil }
