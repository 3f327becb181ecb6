package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/notify"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

// WeatherRefresher fetches a fresh weather snapshot on demand
type WeatherRefresher interface {
	Refresh(ctx context.Context) error
}

// ReportService sends the scheduled outbound reports: morning and evening
// weather emails on cron schedules and a periodic Telegram farm status.
// Every job refreshes the weather snapshot first so reports never render
// data older than the poll interval.
type ReportService struct {
	cfg         *config.Config
	sharedState *state.SharedState
	trainer     *TrainerService
	weather     WeatherRefresher
	mailer      *notify.Mailer
	telegram    *notify.Telegram
	logger      *utils.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewReportService creates the report scheduler
func NewReportService(
	cfg *config.Config,
	sharedState *state.SharedState,
	trainer *TrainerService,
	weather WeatherRefresher,
	mailer *notify.Mailer,
	telegram *notify.Telegram,
	logger *utils.Logger,
) *ReportService {
	return &ReportService{
		cfg:         cfg,
		sharedState: sharedState,
		trainer:     trainer,
		weather:     weather,
		mailer:      mailer,
		telegram:    telegram,
		logger:      logger.Named("report_service"),
	}
}

// Start registers the cron entries and the status ticker
func (s *ReportService) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.mailer.Enabled() {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.cfg.Email.MorningCron, func() { s.sendDailyEmail("morning") }); err != nil {
			return err
		}
		if _, err := s.cron.AddFunc(s.cfg.Email.EveningCron, func() { s.sendDailyEmail("evening") }); err != nil {
			return err
		}
		s.cron.Start()
		s.logger.Info("Daily email reports scheduled",
			zap.String("morning", s.cfg.Email.MorningCron),
			zap.String("evening", s.cfg.Email.EveningCron))
	}

	if s.telegram.Enabled() && s.cfg.Telegram.StatusMinutes > 0 {
		interval := time.Duration(s.cfg.Telegram.StatusMinutes) * time.Minute
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.sendTelegramStatus()
				}
			}
		}()
		s.logger.Info("Telegram status updates scheduled", zap.Duration("interval", interval))
	}

	return nil
}

// Stop halts the schedules; a report already being sent finishes
func (s *ReportService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// SendStatusNow renders and sends one Telegram status message immediately
func (s *ReportService) SendStatusNow() error {
	return s.sendStatus()
}

func (s *ReportService) sendTelegramStatus() {
	if err := s.sendStatus(); err != nil {
		s.logger.Warn("Failed to send Telegram status", zap.Error(err))
	}
}

func (s *ReportService) sendStatus() error {
	s.refreshWeather()
	return s.telegram.Send(s.StatusMessage())
}

// StatusMessage renders the current farm status from shared state
func (s *ReportService) StatusMessage() string {
	return notify.RenderStatus(notify.StatusInput{
		Weather:     s.sharedState.Weather(),
		Reading:     s.sharedState.LatestReading(),
		Online:      s.sharedState.DeviceOnline(s.cfg.Ingest.OnlineWindow()),
		LastSeen:    s.sharedState.LastSeen(),
		Counters:    s.sharedState.Counters(),
		ModelLoaded: s.trainer.ModelLoaded(),
		Now:         time.Now(),
	})
}

// refreshWeather is best-effort; a failed fetch falls back to the cached
// snapshot, which RenderStatus marks by its age
func (s *ReportService) refreshWeather() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.weather.Refresh(ctx); err != nil {
		s.logger.Warn("Weather refresh failed, reporting cached snapshot", zap.Error(err))
	}
}

func (s *ReportService) sendDailyEmail(timeOfDay string) {
	s.refreshWeather()
	weather := s.sharedState.Weather()
	decision := notify.RecommendFromWeather(weather.RainProbPct, weather.Humidity, false)

	subject, html := notify.RenderDailyEmail(notify.DailyEmailInput{
		TimeOfDay: timeOfDay,
		Weather:   weather,
		Decision:  decision,
		Counters:  s.sharedState.Counters(),
		Now:       time.Now(),
	})

	if err := s.mailer.Send(subject, html); err != nil {
		s.logger.Warn("Failed to send daily report email",
			zap.String("time_of_day", timeOfDay), zap.Error(err))
		return
	}
	s.logger.Info("Daily report email sent", zap.String("time_of_day", timeOfDay))
}
