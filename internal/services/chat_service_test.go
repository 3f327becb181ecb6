package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/irrigation-backend/internal/state"
)

// newChatUnderTest builds the service with no provider credentials, so the
// fallback chain is the code under test
func newChatUnderTest(t *testing.T) (*ChatService, *state.SharedState) {
	t.Helper()

	cfg := testConfig(t)
	shared := state.New()
	return NewChatService(cfg, shared, nopLogger()), shared
}

func TestAskFallsBackToStatic(t *testing.T) {
	svc, _ := newChatUnderTest(t)

	resp := svc.Ask(context.Background(), "how do I calibrate the soil sensor?")
	require.NotNil(t, resp)
	assert.Equal(t, "static", resp.Provider)
	assert.NotEmpty(t, resp.Reply)
}

func TestAskEmptyMessage(t *testing.T) {
	svc, _ := newChatUnderTest(t)

	resp := svc.Ask(context.Background(), "   ")
	assert.Equal(t, "static", resp.Provider)
}

func TestAskWeatherFallback(t *testing.T) {
	svc, shared := newChatUnderTest(t)
	shared.SetWeather(state.WeatherSnapshot{
		City: "Erode", Temperature: 31.2, Humidity: 58,
		RainProbPct: 80, Description: "light rain",
		FetchedAt: time.Now(),
	})

	resp := svc.Ask(context.Background(), "will it rain today?")
	assert.Equal(t, "weather", resp.Provider)
	assert.Contains(t, resp.Reply, "Erode")
	assert.Contains(t, resp.Reply, "skipping irrigation")

	// non-weather questions skip the snapshot
	resp = svc.Ask(context.Background(), "what is the pump status?")
	assert.Equal(t, "static", resp.Provider)
}

func TestAskWeatherFallbackRecommendsIrrigation(t *testing.T) {
	svc, shared := newChatUnderTest(t)
	shared.SetWeather(state.WeatherSnapshot{
		City: "Erode", RainProbPct: 10, FetchedAt: time.Now(),
	})

	resp := svc.Ask(context.Background(), "what's the weather like?")
	assert.Equal(t, "weather", resp.Provider)
	assert.Contains(t, resp.Reply, "Irrigation recommended")
}

func TestAskTruncatesOversizeInput(t *testing.T) {
	svc, shared := newChatUnderTest(t)
	shared.SetWeather(state.WeatherSnapshot{City: "Erode", FetchedAt: time.Now()})

	// a giant message ending in a weather keyword: after truncation to the
	// configured limit the keyword survives because it appears early too
	msg := "rain " + strings.Repeat("x", 10000)
	resp := svc.Ask(context.Background(), msg)
	assert.Equal(t, "weather", resp.Provider)
}
