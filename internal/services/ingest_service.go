package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/forecast"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

// SensorPayload is one raw sample as submitted by a device over HTTP,
// WebSocket, MQTT or Kafka. Required fields are pointers so a missing field
// is distinguishable from a zero value.
type SensorPayload struct {
	Timestamp    string   `json:"timestamp,omitempty"`
	Soil         *float64 `json:"soil"`
	Temperature  *float64 `json:"temperature"`
	Humidity     *float64 `json:"humidity"`
	Pump         *int     `json:"pump"`
	Mode         *string  `json:"mode"`
	Rain         *float64 `json:"rain,omitempty"`
	RainRaw      *float64 `json:"rain_raw,omitempty"`
	Light        *float64 `json:"light,omitempty"`
	LightPercent *float64 `json:"light_percent,omitempty"`
	Flow         *float64 `json:"flow,omitempty"`
	RainDetected bool     `json:"rain_detected,omitempty"`
	Source       string   `json:"source,omitempty"`
}

// EventPublisher is the optional outbound event bridge (Kafka). Publishing is
// fire-and-forget from ingest's point of view.
type EventPublisher interface {
	PublishReading(reading *models.SensorReading) error
}

// IngestService validates, normalizes and persists sensor samples, then fans
// them out to realtime subscribers. All ingest paths converge here.
type IngestService struct {
	cfg         *config.Config
	readings    repository.ReadingRepository
	sharedState *state.SharedState
	broadcast   *BroadcastService
	publisher   EventPublisher
	logger      *utils.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	cfg *config.Config,
	readings repository.ReadingRepository,
	sharedState *state.SharedState,
	broadcast *BroadcastService,
	logger *utils.Logger,
) *IngestService {
	return &IngestService{
		cfg:         cfg,
		readings:    readings,
		sharedState: sharedState,
		broadcast:   broadcast,
		logger:      logger.Named("ingest_service"),
	}
}

// SetPublisher installs the optional event bridge, called once at startup
func (s *IngestService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// IngestJSON decodes and ingests one raw JSON frame. origin is the websocket
// client the frame arrived on, nil for other transports.
func (s *IngestService) IngestJSON(data []byte, origin *Client) (*models.SensorReading, error) {
	var payload SensorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed sensor payload: %v", utils.ErrBadRequest, err)
	}
	return s.Ingest(&payload, origin)
}

// Ingest validates and persists one sample. The accepted reading is
// broadcast to every realtime subscriber except the originating connection.
func (s *IngestService) Ingest(payload *SensorPayload, origin *Client) (*models.SensorReading, error) {
	reading, err := s.normalize(payload)
	if err != nil {
		return nil, err
	}

	// Live consumers see the reading even when the write below fails; only
	// the rolling dataset is affected by a persistence outage
	s.sharedState.SetLatestReading(reading)
	s.broadcast.BroadcastExcept(origin, EventTypeSensorUpdate, reading)

	// One retry covers transient connection drops; a second failure is
	// surfaced so the device can resend
	if err := s.readings.Append(reading); err != nil {
		s.logger.Warn("Reading insert failed, retrying once", zap.Error(err))
		if err = s.readings.Append(reading); err != nil {
			return reading, fmt.Errorf("%w: failed to store reading: %v", utils.ErrPersistence, err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReading(reading); err != nil {
			s.logger.Warn("Failed to publish reading to event bridge", zap.Error(err))
		}
	}

	// Retention is best-effort and never blocks the ingest path
	go func() {
		if err := s.readings.TrimToMax(s.cfg.Ingest.MaxRows); err != nil {
			s.logger.Warn("Dataset trim failed", zap.Error(err))
		}
	}()

	return reading, nil
}

// normalize validates required fields and converts raw values to the
// canonical percentage scales
func (s *IngestService) normalize(p *SensorPayload) (*models.SensorReading, error) {
	var missing []string
	if p.Soil == nil {
		missing = append(missing, "soil")
	}
	if p.Temperature == nil {
		missing = append(missing, "temperature")
	}
	if p.Humidity == nil {
		missing = append(missing, "humidity")
	}
	if p.Pump == nil {
		missing = append(missing, "pump")
	}
	if p.Mode == nil {
		missing = append(missing, "mode")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", utils.ErrValidation, strings.Join(missing, ", "))
	}

	mode := models.Mode(strings.ToLower(*p.Mode))
	if mode != models.ModeAuto && mode != models.ModeManual {
		return nil, fmt.Errorf("%w: unknown mode %q", utils.ErrValidation, *p.Mode)
	}

	ts := time.Now().UTC()
	if p.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			ts = parsed.UTC()
		}
	}

	full := s.cfg.Ingest.ADCFullScale
	reading := &models.SensorReading{
		Time:         ts,
		SoilMoisture: forecast.NormalizePercent(*p.Soil, full),
		Temperature:  *p.Temperature,
		Humidity:     forecast.ClampPercent(*p.Humidity),
		Mode:         mode,
		PumpStatus:   *p.Pump != 0,
		RainDetected: p.RainDetected,
		Source:       models.SourceESP32,
	}
	if p.Source != "" {
		reading.Source = models.Source(p.Source)
	}

	// rain and light arrive either pre-scaled or as raw ADC counts
	switch {
	case p.Rain != nil:
		reading.RainPct = forecast.NormalizePercent(*p.Rain, full)
	case p.RainRaw != nil:
		// rain sensor reads high when dry, invert to a wetness percentage
		reading.RainPct = forecast.ClampPercent(100 - *p.RainRaw/full*100)
	}
	switch {
	case p.LightPercent != nil:
		reading.LightPct = forecast.ClampPercent(*p.LightPercent)
	case p.Light != nil:
		reading.LightPct = forecast.NormalizePercent(*p.Light, full)
	}
	if p.Flow != nil && *p.Flow > 0 {
		reading.Flow = *p.Flow
	}

	return reading, nil
}
