package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run()
	return hub
}

func waitForRoom(t *testing.T, hub *Hub, room string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.rooms[room]) == want
	}, time.Second, 5*time.Millisecond)
}

func TestHubBroadcastsToTournamentRoom(t *testing.T) {
	hub := newTestHub()

	client := NewClient(hub, nil, 42)
	client.Register()
	waitForRoom(t, hub, "42", 1)

	hub.BroadcastTournamentEvent(42, EventStructureBuilt, map[string]int{"stage_id": 7})

	select {
	case raw := <-client.send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, EventStructureBuilt, msg.Type)
		assert.Equal(t, "42", msg.RoomID)
		payload, ok := msg.Payload.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(7), payload["stage_id"])
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestHubScopesBroadcastsByRoom(t *testing.T) {
	hub := newTestHub()

	other := NewClient(hub, nil, 7)
	other.Register()
	waitForRoom(t, hub, "7", 1)

	hub.BroadcastTournamentEvent(42, EventMatchesScheduled, nil)

	select {
	case <-other.send:
		t.Fatal("client received an event for a different tournament")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSkipsSlowClients(t *testing.T) {
	hub := newTestHub()

	client := NewClient(hub, nil, 42)
	client.Register()
	waitForRoom(t, hub, "42", 1)

	// Fill the buffer; further broadcasts must not block.
	for i := 0; i < cap(client.send)+5; i++ {
		hub.BroadcastTournamentEvent(42, EventMatchesScheduled, i)
	}
	assert.Len(t, client.send, cap(client.send))
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := newTestHub()

	client := NewClient(hub, nil, 42)
	client.Register()
	waitForRoom(t, hub, "42", 1)

	hub.unregister <- client
	waitForRoom(t, hub, "42", 0)

	_, open := <-client.send
	assert.False(t, open)

	// Broadcasting into the now-empty room is harmless.
	hub.BroadcastTournamentEvent(42, EventStructureBuilt, nil)
}
