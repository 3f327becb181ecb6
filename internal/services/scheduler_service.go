package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/forecast"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

// SchedulerService triggers retrains on a wall-clock interval and when the
// dataset grows by a configured number of rows. At most one training run is
// in flight at any time; triggers that arrive mid-run are dropped, not queued.
type SchedulerService struct {
	cfg      *config.Config
	trainer  *TrainerService
	readings repository.ReadingRepository
	logger   *utils.Logger

	training    atomic.Bool
	lastTrainAt atomic.Int64 // unix seconds, 0 = never
	rowsAtTrain atomic.Int64
	cancel      context.CancelFunc
}

// NewSchedulerService creates the retrain scheduler
func NewSchedulerService(cfg *config.Config, trainer *TrainerService, readings repository.ReadingRepository, logger *utils.Logger) *SchedulerService {
	return &SchedulerService{
		cfg:      cfg,
		trainer:  trainer,
		readings: readings,
		logger:   logger.Named("scheduler_service"),
	}
}

// Start launches the interval and row-count watchers
func (s *SchedulerService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if n, err := s.readings.Count(); err == nil {
		s.rowsAtTrain.Store(n)
	}

	go s.intervalLoop(ctx)
	go s.rowCountLoop(ctx)
	s.logger.Info("Retrain scheduler started",
		zap.Int("interval_hours", s.cfg.Training.IntervalHours),
		zap.Int("row_count_trigger", s.cfg.Training.RowCountTrigger))
}

// Stop halts the watchers; an in-flight run finishes on its own
func (s *SchedulerService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// TriggerTrain requests a run through the single-flight gate. It returns the
// report, or ErrTrainingBusy-flavored validation error when a run is already
// in flight so callers can surface "retrain already running".
func (s *SchedulerService) TriggerTrain(trigger string) (*forecast.Report, error) {
	if !s.training.CompareAndSwap(false, true) {
		return nil, utils.ErrTrainingBusy
	}
	defer s.training.Store(false)

	report, err := s.trainer.Train(trigger)
	if err != nil {
		return nil, err
	}

	s.lastTrainAt.Store(time.Now().Unix())
	if n, cerr := s.readings.Count(); cerr == nil {
		s.rowsAtTrain.Store(n)
	}
	return report, nil
}

// TriggerTrainAsync requests a fire-and-forget run: the gate is claimed
// before returning, the run itself happens on its own goroutine with the
// outcome logged. ErrTrainingBusy when a run is already in flight.
func (s *SchedulerService) TriggerTrainAsync(trigger string) error {
	if !s.training.CompareAndSwap(false, true) {
		return utils.ErrTrainingBusy
	}

	go func() {
		defer s.training.Store(false)

		if _, err := s.trainer.Train(trigger); err != nil {
			if utils.IsInsufficientDataError(err) {
				s.logger.Info("Retrain skipped, not enough data", zap.String("trigger", trigger), zap.Error(err))
			} else {
				s.logger.Error("Retrain failed", zap.String("trigger", trigger), zap.Error(err))
			}
			return
		}

		s.lastTrainAt.Store(time.Now().Unix())
		if n, cerr := s.readings.Count(); cerr == nil {
			s.rowsAtTrain.Store(n)
		}
	}()
	return nil
}

// TrainingInFlight reports whether a run is currently active
func (s *SchedulerService) TrainingInFlight() bool {
	return s.training.Load()
}

// LastTrainAt returns the wall-clock time of the last successful run, zero
// before the first one
func (s *SchedulerService) LastTrainAt() time.Time {
	sec := s.lastTrainAt.Load()
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// NextTrainAt returns when the interval trigger will next fire
func (s *SchedulerService) NextTrainAt() time.Time {
	last := s.LastTrainAt()
	if last.IsZero() {
		last = time.Now()
	}
	return last.Add(s.cfg.Training.RetrainInterval())
}

func (s *SchedulerService) intervalLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Training.RetrainInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runQuietly("interval")
		}
	}
}

func (s *SchedulerService) rowCountLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Training.RowCheckInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.readings.Count()
			if err != nil {
				s.logger.Warn("Row count check failed", zap.Error(err))
				continue
			}
			if n-s.rowsAtTrain.Load() >= int64(s.cfg.Training.RowCountTrigger) {
				s.runQuietly("row_count")
			}
		}
	}
}

// runQuietly runs a scheduled trigger, logging instead of propagating
// failures. Insufficient data is routine early in a deployment and logs at
// info; a busy gate just means the other trigger got there first.
func (s *SchedulerService) runQuietly(trigger string) {
	_, err := s.TriggerTrain(trigger)
	switch {
	case err == nil:
	case utils.IsInsufficientDataError(err):
		s.logger.Info("Retrain skipped, not enough data", zap.String("trigger", trigger), zap.Error(err))
	case utils.IsTrainingBusyError(err):
		s.logger.Debug("Retrain skipped, run already in flight", zap.String("trigger", trigger))
	default:
		s.logger.Error("Scheduled retrain failed", zap.String("trigger", trigger), zap.Error(err))
	}
}
