package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/forecast"
	"github.com/agrisense/irrigation-backend/internal/utils"
)

func newTrainerUnderTest(t *testing.T) (*TrainerService, *repository.RepositoryFactory, string) {
	t.Helper()

	cfg := testConfig(t)
	db := newTestDB(t)
	factory := repository.NewRepositoryFactory(db)
	broadcast := NewBroadcastService(nopLogger())

	trainer, err := NewTrainerService(cfg, factory.Reading(), factory.Training(), broadcast, nopLogger())
	require.NoError(t, err)
	return trainer, factory, cfg.Training.ArtifactDir
}

func TestTrainInsufficientData(t *testing.T) {
	trainer, factory, dir := newTrainerUnderTest(t)
	seedReadings(t, factory.Reading(), 10)

	_, err := trainer.Train("manual")
	require.Error(t, err)
	assert.True(t, utils.IsInsufficientDataError(err))
	assert.False(t, trainer.ModelLoaded())

	// a failed run must not leave artifacts behind
	_, serr := os.Stat(filepath.Join(dir, "model_report.json"))
	assert.True(t, os.IsNotExist(serr))
}

func TestTrainFullCycle(t *testing.T) {
	trainer, factory, dir := newTrainerUnderTest(t)
	seedReadings(t, factory.Reading(), 1000)

	report, err := trainer.Train("manual")
	require.NoError(t, err)

	assert.Equal(t, 1000, report.Rows)
	assert.Equal(t, 800, report.TrainRows)
	assert.Equal(t, 200, report.TestRows)
	assert.Equal(t, []string{"temperature", "humidity"}, report.ExogCols)
	require.NotNil(t, report.ArimaRMSE)
	require.NotNil(t, report.ArimaxRMSE)
	assert.Contains(t, []string{"ARIMA", "ARIMAX"}, report.BestModel)

	assert.True(t, trainer.ModelLoaded())
	uni, multi := trainer.Models()
	require.NotNil(t, uni)
	require.NotNil(t, multi)
	assert.Len(t, multi.ExogCols, 2)

	for _, name := range []string{"arima_model.json", "arimax_model.json", "model_report.json"} {
		_, serr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, serr, name)
	}
}

func TestTrainRecordsAuditRow(t *testing.T) {
	trainer, factory, _ := newTrainerUnderTest(t)
	seedReadings(t, factory.Reading(), 100)

	report, err := trainer.Train("row_count")
	require.NoError(t, err)

	run, err := factory.Training().Latest()
	require.NoError(t, err)
	assert.Equal(t, "row_count", run.Trigger)
	assert.Equal(t, report.BestModel, run.BestModel)
	assert.Equal(t, 100, run.Rows)
}

func TestArtifactsSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	db := newTestDB(t)
	factory := repository.NewRepositoryFactory(db)
	broadcast := NewBroadcastService(nopLogger())

	trainer, err := NewTrainerService(cfg, factory.Reading(), factory.Training(), broadcast, nopLogger())
	require.NoError(t, err)
	seedReadings(t, factory.Reading(), 200)
	_, err = trainer.Train("manual")
	require.NoError(t, err)

	// a fresh service on the same artifact dir serves without retraining
	restarted, err := NewTrainerService(cfg, factory.Reading(), factory.Training(), broadcast, nopLogger())
	require.NoError(t, err)
	assert.True(t, restarted.ModelLoaded())
	require.NotNil(t, restarted.Report())
	assert.Equal(t, 200, restarted.Report().Rows)
}

func TestPickBestModelPrefersLowerRMSE(t *testing.T) {
	lo, hi := 1.0, 2.0

	assert.Equal(t, "ARIMA", pickBestModel(&forecast.Report{ArimaRMSE: &lo, ArimaxRMSE: &hi}))
	assert.Equal(t, "ARIMAX", pickBestModel(&forecast.Report{ArimaRMSE: &hi, ArimaxRMSE: &lo}))
	// ties favor the variant with more information
	assert.Equal(t, "ARIMAX", pickBestModel(&forecast.Report{ArimaRMSE: &lo, ArimaxRMSE: &lo}))
	assert.Equal(t, "ARIMA", pickBestModel(&forecast.Report{ArimaRMSE: &lo}))
	assert.Equal(t, "ARIMAX", pickBestModel(&forecast.Report{ArimaxRMSE: &lo}))
}
