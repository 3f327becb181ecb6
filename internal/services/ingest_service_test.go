package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
)

func newIngestUnderTest(t *testing.T) (*IngestService, *repository.RepositoryFactory, *state.SharedState) {
	t.Helper()

	cfg := testConfig(t)
	db := newTestDB(t)
	factory := repository.NewRepositoryFactory(db)
	shared := state.New()
	broadcast := NewBroadcastService(nopLogger())

	return NewIngestService(cfg, factory.Reading(), shared, broadcast, nopLogger()), factory, shared
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func sptr(v string) *string   { return &v }

func TestIngestRejectsMissingFields(t *testing.T) {
	svc, factory, _ := newIngestUnderTest(t)

	_, err := svc.Ingest(&SensorPayload{Soil: fptr(40), Mode: sptr("auto")}, nil)
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))
	// the error names every missing field so firmware bugs are debuggable
	assert.Contains(t, err.Error(), "temperature")
	assert.Contains(t, err.Error(), "humidity")
	assert.Contains(t, err.Error(), "pump")

	n, cerr := factory.Reading().Count()
	require.NoError(t, cerr)
	assert.Zero(t, n)
}

func TestIngestRejectsUnknownMode(t *testing.T) {
	svc, _, _ := newIngestUnderTest(t)

	_, err := svc.Ingest(&SensorPayload{
		Soil: fptr(40), Temperature: fptr(30), Humidity: fptr(50),
		Pump: iptr(0), Mode: sptr("turbo"),
	}, nil)
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))
}

func TestIngestNormalizesADCCounts(t *testing.T) {
	svc, factory, shared := newIngestUnderTest(t)

	reading, err := svc.Ingest(&SensorPayload{
		Soil: fptr(2047.5), Temperature: fptr(31), Humidity: fptr(55),
		Pump: iptr(1), Mode: sptr("AUTO"),
		RainRaw: fptr(4095), Light: fptr(4095), Flow: fptr(2.5),
	}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, reading.SoilMoisture, 0.01)
	// a bone-dry rain sensor reads full scale, inverting to zero wetness
	assert.InDelta(t, 0.0, reading.RainPct, 0.01)
	assert.InDelta(t, 100.0, reading.LightPct, 0.01)
	assert.True(t, reading.PumpStatus)
	assert.Equal(t, models.ModeAuto, reading.Mode)
	assert.Equal(t, 2.5, reading.Flow)

	n, err := factory.Reading().Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	latest := shared.LatestReading()
	require.NotNil(t, latest)
	assert.InDelta(t, 50.0, latest.SoilMoisture, 0.01)
}

func TestIngestKeepsPercentagesAsIs(t *testing.T) {
	svc, _, _ := newIngestUnderTest(t)

	reading, err := svc.Ingest(&SensorPayload{
		Soil: fptr(42), Temperature: fptr(30), Humidity: fptr(150),
		Pump: iptr(0), Mode: sptr("manual"),
		Rain: fptr(20), LightPercent: fptr(80),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 42.0, reading.SoilMoisture)
	// out-of-range percentages clamp instead of failing the sample
	assert.Equal(t, 100.0, reading.Humidity)
	assert.Equal(t, 20.0, reading.RainPct)
	assert.Equal(t, 80.0, reading.LightPct)
	assert.Equal(t, models.ModeManual, reading.Mode)
}

func TestIngestJSONMalformedFrame(t *testing.T) {
	svc, _, _ := newIngestUnderTest(t)

	_, err := svc.IngestJSON([]byte("{not json"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrBadRequest)
}

// failingAppendRepo simulates a database outage on the write path
type failingAppendRepo struct {
	repository.ReadingRepository
	attempts int
}

func (r *failingAppendRepo) Append(*models.SensorReading) error {
	r.attempts++
	return errors.New("connection refused")
}

func TestIngestBroadcastsDespitePersistenceFailure(t *testing.T) {
	cfg := testConfig(t)
	db := newTestDB(t)
	factory := repository.NewRepositoryFactory(db)
	shared := state.New()
	broadcast := NewBroadcastService(nopLogger())
	repo := &failingAppendRepo{ReadingRepository: factory.Reading()}
	svc := NewIngestService(cfg, repo, shared, broadcast, nopLogger())

	subscriber := hubClient("dashboard", 8)
	broadcast.register <- subscriber
	require.Eventually(t, func() bool { return broadcast.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	_, err := svc.Ingest(&SensorPayload{
		Soil: fptr(40), Temperature: fptr(30), Humidity: fptr(50),
		Pump: iptr(0), Mode: sptr("auto"),
	}, nil)
	require.Error(t, err)
	assert.True(t, utils.IsPersistenceError(err))
	assert.Equal(t, 2, repo.attempts, "a failed insert is retried once")

	// a storage outage must not blind live consumers
	latest := shared.LatestReading()
	require.NotNil(t, latest)
	assert.Equal(t, 40.0, latest.SoilMoisture)

	select {
	case <-subscriber.send:
	case <-time.After(2 * time.Second):
		t.Fatal("reading was not broadcast when the write failed")
	}
}

func TestIngestJSONFullFrame(t *testing.T) {
	svc, _, _ := newIngestUnderTest(t)

	frame := []byte(`{"soil":3000,"temperature":29.5,"humidity":61,"pump":0,"mode":"auto","timestamp":"2026-08-25T10:00:00Z","source":"simulation"}`)
	reading, err := svc.IngestJSON(frame, nil)
	require.NoError(t, err)

	assert.InDelta(t, 3000.0/4095*100, reading.SoilMoisture, 0.01)
	assert.Equal(t, models.SourceSimulation, reading.Source)
	assert.Equal(t, 2026, reading.Time.Year())
}
