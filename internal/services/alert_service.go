package services

import (
	"context"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/notify"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

// AlertService watches the shared state and fires threshold alerts. Every
// alert type has an independent cooldown so a stuck sensor cannot flood the
// Telegram chat.
type AlertService struct {
	cfg         *config.Config
	sharedState *state.SharedState
	alerts      repository.AlertRepository
	telegram    *notify.Telegram
	broadcast   *BroadcastService
	logger      *utils.Logger

	publisher AlertPublisher

	lastPump   *bool
	wasOffline bool
	cancel     context.CancelFunc
}

// AlertPublisher is the optional outbound event bridge for alert events
type AlertPublisher interface {
	PublishAlert(event *models.AlertEvent) error
}

// NewAlertService creates the alert watcher
func NewAlertService(
	cfg *config.Config,
	sharedState *state.SharedState,
	alerts repository.AlertRepository,
	telegram *notify.Telegram,
	broadcast *BroadcastService,
	logger *utils.Logger,
) *AlertService {
	return &AlertService{
		cfg:         cfg,
		sharedState: sharedState,
		alerts:      alerts,
		telegram:    telegram,
		broadcast:   broadcast,
		logger:      logger.Named("alert_service"),
	}
}

// SetPublisher installs the optional event bridge, called once at startup
func (s *AlertService) SetPublisher(p AlertPublisher) {
	s.publisher = p
}

// Start launches the periodic check loop
func (s *AlertService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	interval := time.Duration(s.cfg.Alerts.CheckIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CheckOnce()
			}
		}
	}()
	s.logger.Info("Alert watcher started", zap.Duration("interval", interval))
}

// Stop halts the check loop
func (s *AlertService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// CheckOnce evaluates all thresholds against the current state
func (s *AlertService) CheckOnce() {
	th := s.cfg.Alerts
	cooldown := time.Duration(th.CooldownMinutes) * time.Minute

	online := s.sharedState.DeviceOnline(s.cfg.Ingest.OnlineWindow())
	reading := s.sharedState.LatestReading()

	// offline transition fires once per outage, not per check
	if !online && reading != nil && !s.wasOffline {
		s.fire(models.AlertDeviceOffline, 0, cooldown)
	}
	s.wasOffline = !online

	if online && reading != nil {
		switch {
		case reading.SoilMoisture <= th.SoilCriticalPct:
			s.fire(models.AlertSoilCritical, reading.SoilMoisture, cooldown)
		case reading.SoilMoisture <= th.SoilLowPct:
			s.fire(models.AlertSoilLow, reading.SoilMoisture, cooldown)
		case reading.SoilMoisture >= th.SoilHighPct:
			s.fire(models.AlertSoilHigh, reading.SoilMoisture, cooldown)
		}

		if reading.Temperature >= th.TemperatureHighC {
			s.fire(models.AlertTemperatureHigh, reading.Temperature, cooldown)
		}
		if reading.LightPct <= th.LightLowPct {
			s.fire(models.AlertLightLow, reading.LightPct, cooldown)
		} else if reading.LightPct >= th.LightHighPct {
			s.fire(models.AlertLightHigh, reading.LightPct, cooldown)
		}

		// pump transitions bypass the threshold checks but share the
		// cooldown machinery
		pump := reading.PumpStatus
		if s.lastPump != nil && *s.lastPump != pump {
			value := 0.0
			if pump {
				value = 1.0
			}
			s.fire(models.AlertPumpChanged, value, cooldown)
		}
		s.lastPump = &pump
	}

	weather := s.sharedState.Weather()
	if !weather.FetchedAt.IsZero() && weather.RainProbPct >= th.RainProbabilityPct {
		s.fire(models.AlertRainExpected, weather.RainProbPct, cooldown)
	}
}

// fire dispatches one alert if its cooldown allows, recording the event and
// notifying every sink
func (s *AlertService) fire(t models.AlertType, value float64, cooldown time.Duration) {
	if !s.sharedState.TryFireAlert(t, cooldown) {
		return
	}

	message := notify.RenderAlert(t, value)
	event := &models.AlertEvent{
		Time:    time.Now().UTC(),
		Type:    t,
		Value:   value,
		Message: message,
		Sink:    "telegram",
	}

	if err := s.alerts.Insert(event); err != nil {
		s.logger.Warn("Failed to record alert event", zap.Error(err))
	}

	s.broadcast.Broadcast(EventTypeAlert, event)

	if s.publisher != nil {
		if err := s.publisher.PublishAlert(event); err != nil {
			s.logger.Warn("Failed to publish alert to event bridge", zap.Error(err))
		}
	}

	if s.telegram.Enabled() {
		if err := s.telegram.Send(message); err != nil {
			s.logger.Warn("Failed to send Telegram alert",
				zap.String("type", string(t)), zap.Error(err))
		}
	}

	s.logger.Info("Alert fired", zap.String("type", string(t)), zap.Float64("value", value))
}
