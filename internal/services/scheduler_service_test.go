package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/utils"
)

func newSchedulerUnderTest(t *testing.T) (*SchedulerService, *repository.RepositoryFactory) {
	t.Helper()

	cfg := testConfig(t)
	db := newTestDB(t)
	factory := repository.NewRepositoryFactory(db)
	broadcast := NewBroadcastService(nopLogger())

	trainer, err := NewTrainerService(cfg, factory.Reading(), factory.Training(), broadcast, nopLogger())
	require.NoError(t, err)
	return NewSchedulerService(cfg, trainer, factory.Reading(), nopLogger()), factory
}

func TestTriggerTrainSingleFlight(t *testing.T) {
	s, _ := newSchedulerUnderTest(t)

	// simulate a run already holding the gate
	s.training.Store(true)
	_, err := s.TriggerTrain("manual")
	require.Error(t, err)
	assert.True(t, utils.IsTrainingBusyError(err))
	s.training.Store(false)
}

func TestTriggerTrainReleasesGateOnFailure(t *testing.T) {
	s, _ := newSchedulerUnderTest(t)

	// empty dataset fails the run, the gate must still be released
	_, err := s.TriggerTrain("manual")
	require.Error(t, err)
	assert.True(t, utils.IsInsufficientDataError(err))
	assert.False(t, s.TrainingInFlight())
	assert.True(t, s.LastTrainAt().IsZero())
}

func TestTriggerTrainAsyncBusyGate(t *testing.T) {
	s, _ := newSchedulerUnderTest(t)

	s.training.Store(true)
	err := s.TriggerTrainAsync("manual")
	require.Error(t, err)
	assert.True(t, utils.IsTrainingBusyError(err))
	s.training.Store(false)
}

func TestTriggerTrainAsyncCompletesInBackground(t *testing.T) {
	s, factory := newSchedulerUnderTest(t)
	seedReadings(t, factory.Reading(), 100)

	require.NoError(t, s.TriggerTrainAsync("manual"))

	// the caller gets an immediate ack, the model appears once the run lands
	require.Eventually(t, func() bool {
		return s.trainer.ModelLoaded() && !s.TrainingInFlight()
	}, 30*time.Second, 50*time.Millisecond)
	assert.False(t, s.LastTrainAt().IsZero())
}

func TestTriggerTrainAsyncReleasesGateOnFailure(t *testing.T) {
	s, _ := newSchedulerUnderTest(t)

	// empty dataset fails the run in the background, gate must be released
	require.NoError(t, s.TriggerTrainAsync("manual"))
	require.Eventually(t, func() bool {
		return !s.TrainingInFlight()
	}, 10*time.Second, 20*time.Millisecond)
	assert.True(t, s.LastTrainAt().IsZero())
}

func TestTriggerTrainUpdatesBookkeeping(t *testing.T) {
	s, factory := newSchedulerUnderTest(t)
	seedReadings(t, factory.Reading(), 100)

	report, err := s.TriggerTrain("manual")
	require.NoError(t, err)
	assert.Equal(t, 100, report.Rows)
	assert.False(t, s.LastTrainAt().IsZero())
	assert.True(t, s.NextTrainAt().After(s.LastTrainAt()))
	assert.False(t, s.TrainingInFlight())
}
