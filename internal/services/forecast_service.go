package services

import (
	"fmt"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/forecast"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

// PredictRequest asks for a soil-moisture forecast. recent_rows lets callers
// supply fresh context readings; only the newest row feeds the exogenous
// vector since future exogenous values are repeated, not forecast.
type PredictRequest struct {
	Steps      int             `json:"steps"`
	RecentRows []SensorPayload `json:"recent_rows,omitempty"`
}

// PredictResponse is a served forecast
type PredictResponse struct {
	ModelUsed   string                `json:"model_used"`
	Steps       int                   `json:"steps"`
	Predictions []forecast.Prediction `json:"predictions"`
	TrainedAt   time.Time             `json:"trained_at"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// ForecastService serves predictions from the trainer's current artifacts.
// The multivariate variant is preferred when its exogenous inputs can be
// assembled; otherwise it falls back to the univariate model.
type ForecastService struct {
	cfg         *config.Config
	trainer     *TrainerService
	sharedState *state.SharedState
	logger      *utils.Logger
}

// NewForecastService creates a new forecast service
func NewForecastService(cfg *config.Config, trainer *TrainerService, sharedState *state.SharedState, logger *utils.Logger) *ForecastService {
	return &ForecastService{
		cfg:         cfg,
		trainer:     trainer,
		sharedState: sharedState,
		logger:      logger.Named("forecast_service"),
	}
}

// Predict serves a forecast, clamping steps to the configured bound and all
// predicted values to the [0,100] moisture range
func (s *ForecastService) Predict(req *PredictRequest) (*PredictResponse, error) {
	steps := req.Steps
	if steps < 1 {
		steps = 1
	}
	if steps > s.cfg.Forecast.MaxSteps {
		steps = s.cfg.Forecast.MaxSteps
	}

	uni, multi := s.trainer.Models()
	if uni == nil && multi == nil {
		return nil, utils.ErrNoModel
	}

	model, exogFuture := s.selectModel(uni, multi, req, steps)

	preds, err := model.Forecast(steps, exogFuture)
	if err != nil {
		// a broken preferred artifact still falls back when possible
		if model == multi && uni != nil {
			s.logger.Warn("Multivariate forecast failed, falling back to univariate", zap.Error(err))
			model = uni
			if preds, err = model.Forecast(steps, nil); err != nil {
				return nil, fmt.Errorf("forecast failed: %w", err)
			}
		} else {
			return nil, fmt.Errorf("forecast failed: %w", err)
		}
	}

	for i := range preds {
		preds[i].Value = forecast.ClampPercent(preds[i].Value)
		preds[i].Lower = forecast.ClampPercent(preds[i].Lower)
		preds[i].Upper = forecast.ClampPercent(preds[i].Upper)
	}

	return &PredictResponse{
		ModelUsed:   string(model.Variant),
		Steps:       steps,
		Predictions: preds,
		TrainedAt:   model.TrainedAt,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// selectModel prefers the report's best variant, degrading to whatever can
// actually run with the exogenous data at hand
func (s *ForecastService) selectModel(uni, multi *forecast.Model, req *PredictRequest, steps int) (*forecast.Model, [][]float64) {
	preferMulti := multi != nil
	if report := s.trainer.Report(); report != nil && report.BestModel == string(forecast.VariantUnivariate) && uni != nil {
		preferMulti = false
	}

	if preferMulti {
		if vector := s.exogVector(multi, req); vector != nil {
			return multi, forecast.RepeatExog(vector, steps)
		}
		if uni == nil {
			// last resort, the artifact's own trailing exogenous vector
			return multi, forecast.RepeatExog(multi.LastExog, steps)
		}
		s.logger.Debug("No exogenous data available, serving univariate")
	}
	if uni != nil {
		return uni, nil
	}
	return multi, forecast.RepeatExog(multi.LastExog, steps)
}

// exogVector assembles the exogenous vector from, in order of preference,
// the newest caller-supplied row, the latest ingested reading, or nothing
func (s *ForecastService) exogVector(model *forecast.Model, req *PredictRequest) []float64 {
	if len(req.RecentRows) > 0 {
		if vector, ok := payloadExog(&req.RecentRows[len(req.RecentRows)-1], model.ExogCols, s.cfg.Ingest.ADCFullScale); ok {
			return vector
		}
	}
	if latest := s.sharedState.LatestReading(); latest != nil {
		if vector, ok := latest.ExogenousValues(model.ExogCols); ok {
			return vector
		}
	}
	return nil
}

// payloadExog maps a raw payload onto the model's exogenous columns. Missing
// values fail the whole row so a half-filled vector never skews a forecast.
func payloadExog(p *SensorPayload, cols []string, fullScale float64) ([]float64, bool) {
	vals := make([]float64, 0, len(cols))
	for _, c := range cols {
		switch c {
		case "temperature":
			if p.Temperature == nil {
				return nil, false
			}
			vals = append(vals, *p.Temperature)
		case "humidity":
			if p.Humidity == nil {
				return nil, false
			}
			vals = append(vals, forecast.ClampPercent(*p.Humidity))
		case "rain_pct":
			if p.Rain == nil {
				return nil, false
			}
			vals = append(vals, forecast.NormalizePercent(*p.Rain, fullScale))
		case "light_pct":
			switch {
			case p.LightPercent != nil:
				vals = append(vals, forecast.ClampPercent(*p.LightPercent))
			case p.Light != nil:
				vals = append(vals, forecast.NormalizePercent(*p.Light, fullScale))
			default:
				return nil, false
			}
		case "flow":
			if p.Flow == nil {
				return nil, false
			}
			vals = append(vals, *p.Flow)
		default:
			return nil, false
		}
	}
	return vals, true
}

// LatestReadingOrNil exposes the newest ingested reading for controllers
func (s *ForecastService) LatestReadingOrNil() *models.SensorReading {
	return s.sharedState.LatestReading()
}
