package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/forecast"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

// TrainerService owns the model artifacts. It retrains both variants from a
// snapshot of the rolling dataset and atomically swaps the served models when
// a run succeeds. Failed runs leave the previous artifacts in place.
type TrainerService struct {
	cfg       *config.Config
	readings  repository.ReadingRepository
	trainings repository.TrainingRepository
	store     *forecast.ArtifactStore
	broadcast *BroadcastService
	logger    *utils.Logger

	mu           sync.RWMutex
	univariate   *forecast.Model
	multivariate *forecast.Model
	report       *forecast.Report
}

// NewTrainerService creates the trainer and loads any artifacts left by a
// previous process so forecasts survive restarts.
func NewTrainerService(
	cfg *config.Config,
	readings repository.ReadingRepository,
	trainings repository.TrainingRepository,
	broadcast *BroadcastService,
	logger *utils.Logger,
) (*TrainerService, error) {
	store, err := forecast.NewArtifactStore(cfg.Training.ArtifactDir)
	if err != nil {
		return nil, err
	}

	s := &TrainerService{
		cfg:       cfg,
		readings:  readings,
		trainings: trainings,
		store:     store,
		broadcast: broadcast,
		logger:    logger.Named("trainer_service"),
	}

	if s.univariate, err = store.LoadModel(forecast.VariantUnivariate); err != nil {
		s.logger.Warn("Failed to load univariate artifact", zap.Error(err))
	}
	if s.multivariate, err = store.LoadModel(forecast.VariantMultivariate); err != nil {
		s.logger.Warn("Failed to load multivariate artifact", zap.Error(err))
	}
	if s.report, err = store.LoadReport(); err != nil {
		s.logger.Warn("Failed to load training report", zap.Error(err))
	}
	if s.univariate != nil || s.multivariate != nil {
		s.logger.Info("Model artifacts restored from disk",
			zap.Bool("univariate", s.univariate != nil),
			zap.Bool("multivariate", s.multivariate != nil))
	}

	return s, nil
}

// ModelLoaded reports whether any variant is ready to serve
func (s *TrainerService) ModelLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.univariate != nil || s.multivariate != nil
}

// Models returns the currently served variants; either may be nil
func (s *TrainerService) Models() (univariate, multivariate *forecast.Model) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.univariate, s.multivariate
}

// Report returns the last training report, or nil before the first run
func (s *TrainerService) Report() *forecast.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Train runs one full retrain cycle: snapshot, fit both variants, evaluate on
// the time-ordered holdout, persist artifacts and audit row, swap. trigger is
// recorded in the audit trail ("interval", "row_count", "manual").
func (s *TrainerService) Train(trigger string) (*forecast.Report, error) {
	startedAt := time.Now().UTC()

	count, err := s.readings.Count()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count dataset rows: %v", utils.ErrPersistence, err)
	}
	if count < int64(s.cfg.Training.MinRows) {
		return nil, fmt.Errorf("%w: %d rows, need at least %d", utils.ErrInsufficientData, count, s.cfg.Training.MinRows)
	}

	since := startedAt.AddDate(0, 0, -s.cfg.Training.WindowDays)
	readings, err := s.readings.Window(since)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load training window: %v", utils.ErrPersistence, err)
	}
	if len(readings) < s.cfg.Training.MinRows {
		return nil, fmt.Errorf("%w: %d rows in %d-day window, need at least %d",
			utils.ErrInsufficientData, len(readings), s.cfg.Training.WindowDays, s.cfg.Training.MinRows)
	}

	series := forecast.PrepareSeries(readings)
	trainN, testN := forecast.SplitTrainTest(len(series.Target), s.cfg.Training.TestFraction, 3)

	s.logger.Info("Training started",
		zap.String("trigger", trigger),
		zap.Int("rows", len(series.Target)),
		zap.Int("train_rows", trainN),
		zap.Int("test_rows", testN),
		zap.Any("exog_cols", series.ExogCols))

	report := &forecast.Report{
		Rows:      len(series.Target),
		TrainRows: trainN,
		TestRows:  testN,
		ExogCols:  series.ExogCols,
		TrainedAt: startedAt,
	}

	// Variants fail independently; one bad fit never blocks the other
	uni := s.fitUnivariate(series, trainN, testN, report)
	multi := s.fitMultivariate(series, trainN, testN, report)
	if uni == nil && multi == nil {
		return nil, fmt.Errorf("%w: both model variants failed to fit", utils.ErrInsufficientData)
	}

	report.BestModel = pickBestModel(report)

	if uni != nil {
		if err := s.store.SaveModel(uni); err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrPersistence, err)
		}
	}
	if multi != nil {
		if err := s.store.SaveModel(multi); err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrPersistence, err)
		}
	}
	if err := s.store.SaveReport(report); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrPersistence, err)
	}

	run := &models.TrainingRun{
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		Trigger:      trigger,
		Rows:         report.Rows,
		TrainRows:    report.TrainRows,
		TestRows:     report.TestRows,
		UnivarRMSE:   report.ArimaRMSE,
		UnivarMAPE:   report.ArimaMAPE,
		MultivarRMSE: report.ArimaxRMSE,
		MultivarMAPE: report.ArimaxMAPE,
		BestModel:    report.BestModel,
	}
	if err := s.trainings.Insert(run); err != nil {
		s.logger.Warn("Failed to record training run", zap.Error(err))
	}

	s.mu.Lock()
	if uni != nil {
		s.univariate = uni
	}
	if multi != nil {
		s.multivariate = multi
	}
	s.report = report
	s.mu.Unlock()

	s.broadcast.Broadcast(EventTypeTraining, report)
	s.logger.Info("Training finished",
		zap.String("best_model", report.BestModel),
		zap.Duration("took", time.Since(startedAt)))

	return report, nil
}

// fitUnivariate evaluates on the holdout then refits on the full series for
// serving. Returns nil when the variant cannot be fit.
func (s *TrainerService) fitUnivariate(series forecast.Series, trainN, testN int, report *forecast.Report) *forecast.Model {
	maxOrder := s.cfg.Training.MaxOrder

	eval, err := forecast.Fit(series.Target[:trainN], nil, nil, maxOrder)
	if err != nil {
		s.logger.Warn("Univariate fit failed", zap.Error(err))
		return nil
	}
	preds, err := eval.Forecast(testN, nil)
	if err != nil {
		s.logger.Warn("Univariate holdout forecast failed", zap.Error(err))
		return nil
	}
	rmse := forecast.RMSE(series.Target[trainN:], predictionValues(preds))
	mape := forecast.MAPE(series.Target[trainN:], predictionValues(preds))
	report.ArimaOrder = &eval.Order
	report.ArimaRMSE = &rmse
	report.ArimaMAPE = &mape

	final, err := forecast.Fit(series.Target, nil, nil, maxOrder)
	if err != nil {
		s.logger.Warn("Univariate full refit failed", zap.Error(err))
		return nil
	}
	return final
}

// fitMultivariate is skipped entirely when no exogenous column is populated
func (s *TrainerService) fitMultivariate(series forecast.Series, trainN, testN int, report *forecast.Report) *forecast.Model {
	if len(series.ExogCols) == 0 {
		return nil
	}
	maxOrder := s.cfg.Training.MaxOrder

	eval, err := forecast.Fit(series.Target[:trainN], series.Exog[:trainN], series.ExogCols, maxOrder)
	if err != nil {
		s.logger.Warn("Multivariate fit failed", zap.Error(err))
		return nil
	}
	preds, err := eval.Forecast(testN, series.Exog[trainN:])
	if err != nil {
		s.logger.Warn("Multivariate holdout forecast failed", zap.Error(err))
		return nil
	}
	rmse := forecast.RMSE(series.Target[trainN:], predictionValues(preds))
	mape := forecast.MAPE(series.Target[trainN:], predictionValues(preds))
	report.ArimaxOrder = &eval.Order
	report.ArimaxRMSE = &rmse
	report.ArimaxMAPE = &mape

	final, err := forecast.Fit(series.Target, series.Exog, series.ExogCols, maxOrder)
	if err != nil {
		s.logger.Warn("Multivariate full refit failed", zap.Error(err))
		return nil
	}
	return final
}

// pickBestModel compares holdout RMSE; ties and missing univariate metrics
// favor the multivariate variant
func pickBestModel(r *forecast.Report) string {
	switch {
	case r.ArimaxRMSE == nil:
		return string(forecast.VariantUnivariate)
	case r.ArimaRMSE == nil:
		return string(forecast.VariantMultivariate)
	case *r.ArimaRMSE < *r.ArimaxRMSE:
		return string(forecast.VariantUnivariate)
	default:
		return string(forecast.VariantMultivariate)
	}
}

func predictionValues(preds []forecast.Prediction) []float64 {
	vals := make([]float64, len(preds))
	for i := range preds {
		vals[i] = preds[i].Value
	}
	return vals
}
