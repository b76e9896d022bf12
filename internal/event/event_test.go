package event

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobbyist/internal/logger"
)

func TestBusDeliversToEverySubscriber(t *testing.T) {
	bus := NewBus()
	first, unsubscribeFirst := bus.Subscribe()
	second, unsubscribeSecond := bus.Subscribe()
	defer unsubscribeSecond()

	bus.Publish(Event{ID: "1", Type: TypeUserCreated})

	require.Equal(t, TypeUserCreated, (<-first).Type)
	require.Equal(t, TypeUserCreated, (<-second).Type)

	unsubscribeFirst()
	_, open := <-first
	assert.False(t, open)

	bus.Publish(Event{ID: "2", Type: TypeUserExpired})
	require.Equal(t, "2", (<-second).ID)
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			bus.Publish(Event{Type: TypeSecretCreated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestRunAuditLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	bus := NewBus()
	events, unsubscribe := bus.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finished := make(chan struct{})
	go func() {
		RunAuditLog(ctx, events, log)
		close(finished)
	}()

	bus.Publish(Event{ID: "evt-1", Type: TypeSecretRotated, ActorID: "alice", Payload: map[string]any{"secret": "abc"}})
	unsubscribe()
	<-finished

	out := buf.String()
	assert.Contains(t, out, `"type":"secret.rotated"`)
	assert.Contains(t, out, `"actor":"alice"`)
	assert.Contains(t, out, `"payload":{"secret":"abc"}`)
}

func TestRunAuditLogMasksSecretNames(t *testing.T) {
	for _, format := range []string{"json", "pretty"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(&buf, slog.LevelInfo, format)

			bus := NewBus()
			events, unsubscribe := bus.Subscribe()

			finished := make(chan struct{})
			go func() {
				RunAuditLog(context.Background(), events, log)
				close(finished)
			}()

			bus.Publish(Event{
				ID:      "evt-1",
				Type:    TypeSecretCreated,
				ActorID: "alice",
				Payload: map[string]any{"user": "alice", "secret": "SECRETNAME123"},
			})
			unsubscribe()
			<-finished

			out := buf.String()
			assert.Contains(t, out, "secret.created")
			assert.Contains(t, out, "alice")
			assert.Contains(t, out, "[REDACTED]")
			assert.NotContains(t, out, "SECRETNAME123")
		})
	}
}
