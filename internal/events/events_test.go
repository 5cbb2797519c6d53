package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	defID := uuid.New()
	now := time.Date(2024, time.January, 3, 6, 0, 0, 0, time.FixedZone("EST", -5*3600))

	payload := OccurrencePayload{TaskID: uuid.New(), OccurrenceNumber: 2, DueDate: "2024-01-03", Title: "Standup"}
	event, err := New(TypeOccurrenceGenerated, defID, payload, now)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TypeOccurrenceGenerated, event.Type)
	assert.Equal(t, defID, event.DefinitionID)
	assert.Equal(t, time.UTC, event.CreatedAt.Location())

	var decoded OccurrencePayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)

	bare, err := New(TypeDefinitionExhausted, defID, nil, now)
	require.NoError(t, err)
	assert.Empty(t, bare.Payload)

	_, err = New(TypeGenerationFailed, defID, make(chan int), now)
	assert.Error(t, err, "unserializable payloads are rejected")
}

func TestHandlerFunc(t *testing.T) {
	t.Parallel()
	var got *Event
	h := HandlerFunc(func(ctx context.Context, e *Event) error {
		got = e
		return nil
	})

	event := &Event{ID: uuid.New(), Type: TypeDefinitionPaused}
	require.NoError(t, h.HandleEvent(context.Background(), event))
	assert.Same(t, event, got)

	assert.NoError(t, Discard{}.EmitEvent(context.Background(), event))
}
