package services

import (
	"context"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/agrisense/irrigation-backend/internal/weather"
	"go.uber.org/zap"
)

// WeatherPoller keeps the shared weather snapshot fresh. It is the single
// writer of the weather field; a failed poll leaves the previous snapshot in
// place rather than blanking it.
type WeatherPoller struct {
	cfg         *config.Config
	client      *weather.Client
	sharedState *state.SharedState
	logger      *utils.Logger
	cancel      context.CancelFunc
}

// NewWeatherPoller creates the poller
func NewWeatherPoller(cfg *config.Config, client *weather.Client, sharedState *state.SharedState, logger *utils.Logger) *WeatherPoller {
	return &WeatherPoller{
		cfg:         cfg,
		client:      client,
		sharedState: sharedState,
		logger:      logger.Named("weather_poller"),
	}
}

// Start launches the poll loop; a no-key configuration disables it
func (p *WeatherPoller) Start(ctx context.Context) {
	if !p.client.Enabled() {
		p.logger.Info("Weather poller disabled, no API key configured")
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	interval := time.Duration(p.cfg.Weather.PollMinutes) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	go func() {
		p.pollOnce(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.pollOnce(ctx)
			}
		}
	}()
	p.logger.Info("Weather poller started", zap.Duration("interval", interval))
}

// Stop halts the poll loop
func (p *WeatherPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Refresh fetches a snapshot immediately, outside the poll schedule. Report
// jobs call it so a status message never renders a stale forecast. No-key
// configurations keep whatever snapshot is already in place.
func (p *WeatherPoller) Refresh(ctx context.Context) error {
	if !p.client.Enabled() {
		return nil
	}
	return p.pollOnce(ctx)
}

func (p *WeatherPoller) pollOnce(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	snap, err := p.client.Fetch(reqCtx)
	if err != nil {
		p.logger.Warn("Weather poll failed", zap.Error(err))
		return err
	}
	p.sharedState.SetWeather(snap)
	return nil
}
