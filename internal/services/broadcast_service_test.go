package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hubClient(remote string, buffer int) *Client {
	return &Client{remote: remote, send: make(chan []byte, buffer)}
}

func TestBroadcastExceptSkipsOrigin(t *testing.T) {
	s := NewBroadcastService(nopLogger())

	origin := hubClient("device", 8)
	dashboard := hubClient("dashboard", 8)
	s.register <- origin
	s.register <- dashboard
	require.Eventually(t, func() bool { return s.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	s.BroadcastExcept(origin, EventTypeSensorUpdate, map[string]float64{"soil_moisture": 42})

	select {
	case frame := <-dashboard.send:
		var msg EventMessage
		require.NoError(t, json.Unmarshal(frame, &msg))
		assert.Equal(t, EventTypeSensorUpdate, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard never received the broadcast")
	}

	assert.Empty(t, origin.send, "origin must not hear its own reading echoed back")
}

func TestBroadcastDropsFullClientWithoutStallingHub(t *testing.T) {
	s := NewBroadcastService(nopLogger())

	// a client with no buffer capacity behaves like a stalled dashboard
	stalled := hubClient("stalled", 0)
	s.register <- stalled
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	s.Broadcast(EventTypeAlert, map[string]string{"alert_type": "soil_low"})

	// the hub must keep serving registrations after dropping the stalled client
	fresh := hubClient("fresh", 8)
	registered := make(chan struct{})
	go func() {
		s.register <- fresh
		close(registered)
	}()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("hub stalled while fanning out to a full client")
	}

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	s.Broadcast(EventTypeSensorUpdate, map[string]float64{"soil_moisture": 55})
	select {
	case <-fresh.send:
	case <-time.After(2 * time.Second):
		t.Fatal("fresh client never received a broadcast after the stalled one was dropped")
	}
}
