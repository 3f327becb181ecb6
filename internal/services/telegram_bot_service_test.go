package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/notify"
)

func newBotUnderTest(t *testing.T) (*TelegramBotService, *BroadcastService) {
	t.Helper()

	report, shared, _ := newReportUnderTest(t)
	cfg := testConfig(t)
	broadcast := NewBroadcastService(nopLogger())
	telegram := notify.NewTelegram(config.TelegramConfig{}, nopLogger())
	chat := NewChatService(cfg, shared, nopLogger())

	return NewTelegramBotService(telegram, chat, report, broadcast, nopLogger()), broadcast
}

func TestHandleMessageHelp(t *testing.T) {
	bot, _ := newBotUnderTest(t)

	for _, cmd := range []string{"/start", "/help"} {
		reply := bot.HandleMessage(context.Background(), cmd)
		assert.Contains(t, reply, "/status")
		assert.Contains(t, reply, "pump")
	}
}

func TestHandleMessageStatus(t *testing.T) {
	bot, _ := newBotUnderTest(t)

	reply := bot.HandleMessage(context.Background(), "/status")
	assert.Contains(t, reply, "SMART IRRIGATION UPDATE")
}

func TestHandleMessagePumpCommandReachesDevices(t *testing.T) {
	bot, broadcast := newBotUnderTest(t)

	device := hubClient("device", 8)
	broadcast.register <- device
	require.Eventually(t, func() bool { return broadcast.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	reply := bot.HandleMessage(context.Background(), "/pump_on")
	assert.Equal(t, "Pump command sent: ON", reply)

	select {
	case frame := <-device.send:
		var msg EventMessage
		require.NoError(t, json.Unmarshal(frame, &msg))
		assert.Equal(t, EventTypePumpCommand, msg.Type)
		payload, ok := msg.Payload.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "ON", payload["pump_cmd"])
	case <-time.After(2 * time.Second):
		t.Fatal("device never received the pump command")
	}
}

func TestHandleMessageFreeFormFallsBackToChat(t *testing.T) {
	bot, _ := newBotUnderTest(t)

	reply := bot.HandleMessage(context.Background(), "how do I water my plants?")
	assert.Equal(t, staticReply, reply)
}
