package services

import (
	"context"
	"sync/atomic"
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

// countingRefresher records on-demand weather fetches
type countingRefresher struct {
	calls atomic.Int32
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	c.calls.Add(1)
	return nil
}

func newReportUnderTest(t *testing.T) (*ReportService, *state.SharedState, *countingRefresher) {
	t.Helper()

	cfg := testConfig(t)
	db := newTestDB(t)
	factory := repository.NewRepositoryFactory(db)
	shared := state.New()
	broadcast := NewBroadcastService(nopLogger())

	trainer, err := NewTrainerService(cfg, factory.Reading(), factory.Training(), broadcast, nopLogger())
	require.NoError(t, err)

	refresher := &countingRefresher{}
	mailer := notify.NewMailer(config.EmailConfig{}, nopLogger())
	telegram := notify.NewTelegram(config.TelegramConfig{}, nopLogger())
	svc := NewReportService(cfg, shared, trainer, refresher, mailer, telegram, nopLogger())
	return svc, shared, refresher
}

func TestStatusJobRefreshesWeatherFirst(t *testing.T) {
	svc, _, refresher := newReportUnderTest(t)

	// the disabled sink fails the send, but the snapshot was already
	// refreshed so a stale poll never reaches the rendered message
	err := svc.SendStatusNow()
	require.Error(t, err)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestStatusMessageRendersSharedState(t *testing.T) {
	svc, shared, _ := newReportUnderTest(t)

	shared.SetLatestReading(&models.SensorReading{
		Time: time.Now(), SoilMoisture: 42, Temperature: 27, Humidity: 55, LightPct: 60,
	})
	shared.SetWeather(state.WeatherSnapshot{
		Temperature: 24, Humidity: 50, RainProbPct: 10, FetchedAt: time.Now(),
	})

	msg := svc.StatusMessage()
	assert.Contains(t, msg, "SMART IRRIGATION UPDATE")
	assert.Contains(t, msg, "42.0%")
}
