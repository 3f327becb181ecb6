package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/notify"
	"github.com/agrisense/irrigation-backend/internal/state"
)

func newAlertUnderTest(t *testing.T) (*AlertService, *state.SharedState, repository.AlertRepository) {
	t.Helper()

	cfg := testConfig(t)
	db := newTestDB(t)
	factory := repository.NewRepositoryFactory(db)
	shared := state.New()
	broadcast := NewBroadcastService(nopLogger())
	telegram := notify.NewTelegram(config.TelegramConfig{}, nopLogger())

	svc := NewAlertService(cfg, shared, factory.Alert(), telegram, broadcast, nopLogger())
	return svc, shared, factory.Alert()
}

func alertTypesSince(t *testing.T, alerts repository.AlertRepository) []models.AlertType {
	t.Helper()

	events, err := alerts.Since(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	types := make([]models.AlertType, len(events))
	for i := range events {
		types[i] = events[i].Type
	}
	return types
}

func TestCheckOnceSoilCritical(t *testing.T) {
	svc, shared, alerts := newAlertUnderTest(t)
	shared.SetLatestReading(&models.SensorReading{
		Time: time.Now(), SoilMoisture: 10, Temperature: 25, LightPct: 50,
	})

	svc.CheckOnce()

	types := alertTypesSince(t, alerts)
	assert.Contains(t, types, models.AlertSoilCritical)
	// critical supersedes low, only one soil alert per check
	assert.NotContains(t, types, models.AlertSoilLow)
}

func TestCheckOnceCooldownSuppressesRepeat(t *testing.T) {
	svc, shared, alerts := newAlertUnderTest(t)
	shared.SetLatestReading(&models.SensorReading{
		Time: time.Now(), SoilMoisture: 10, Temperature: 25, LightPct: 50,
	})

	svc.CheckOnce()
	svc.CheckOnce()

	events, err := alerts.Since(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCheckOncePumpTransition(t *testing.T) {
	svc, shared, alerts := newAlertUnderTest(t)

	shared.SetLatestReading(&models.SensorReading{
		Time: time.Now(), SoilMoisture: 50, Temperature: 25, LightPct: 50, PumpStatus: false,
	})
	svc.CheckOnce()
	assert.NotContains(t, alertTypesSince(t, alerts), models.AlertPumpChanged)

	shared.SetLatestReading(&models.SensorReading{
		Time: time.Now(), SoilMoisture: 50, Temperature: 25, LightPct: 50, PumpStatus: true,
	})
	svc.CheckOnce()
	assert.Contains(t, alertTypesSince(t, alerts), models.AlertPumpChanged)
}

func TestCheckOnceOfflineFiresOncePerOutage(t *testing.T) {
	cfg := testConfig(t)
	// a zero online window makes every reading stale immediately
	cfg.Ingest.OnlineThreshold = 0
	db := newTestDB(t)
	factory := repository.NewRepositoryFactory(db)
	shared := state.New()
	broadcast := NewBroadcastService(nopLogger())
	telegram := notify.NewTelegram(config.TelegramConfig{}, nopLogger())
	svc := NewAlertService(cfg, shared, factory.Alert(), telegram, broadcast, nopLogger())

	shared.SetLatestReading(&models.SensorReading{
		Time: time.Now(), SoilMoisture: 10, Temperature: 25, LightPct: 50,
	})

	svc.CheckOnce()
	svc.CheckOnce()

	events, err := factory.Alert().Since(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.AlertDeviceOffline, events[0].Type)
	// stale readings never trip the threshold alerts, even critical soil
	for _, e := range events {
		assert.NotEqual(t, models.AlertSoilCritical, e.Type)
	}
}

type capturingAlertPublisher struct {
	events []*models.AlertEvent
}

func (c *capturingAlertPublisher) PublishAlert(e *models.AlertEvent) error {
	c.events = append(c.events, e)
	return nil
}

func TestCheckOncePublishesToEventBridge(t *testing.T) {
	svc, shared, _ := newAlertUnderTest(t)
	pub := &capturingAlertPublisher{}
	svc.SetPublisher(pub)

	shared.SetLatestReading(&models.SensorReading{
		Time: time.Now(), SoilMoisture: 10, Temperature: 25, LightPct: 50,
	})
	svc.CheckOnce()

	require.NotEmpty(t, pub.events)
	assert.Equal(t, models.AlertSoilCritical, pub.events[0].Type)
}

func TestCheckOnceRainExpected(t *testing.T) {
	svc, shared, alerts := newAlertUnderTest(t)
	shared.SetWeather(state.WeatherSnapshot{RainProbPct: 80, FetchedAt: time.Now()})

	svc.CheckOnce()

	assert.Contains(t, alertTypesSince(t, alerts), models.AlertRainExpected)
}
