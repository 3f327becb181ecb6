package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactStoreRoundTrip(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	m := &Model{
		Variant:     VariantMultivariate,
		Order:       Order{P: 2, D: 1},
		Intercept:   0.5,
		Phi:         []float64{0.6, 0.2},
		Beta:        []float64{0.1},
		ExogCols:    []string{"temperature"},
		ResidualStd: 1.5,
		TailValues:  []float64{40, 41, 42},
		LastExog:    []float64{25},
		TrainedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveModel(m))

	loaded, err := store.LoadModel(VariantMultivariate)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, m.Order, loaded.Order)
	assert.Equal(t, m.Phi, loaded.Phi)
	assert.Equal(t, m.ExogCols, loaded.ExogCols)
	assert.Equal(t, m.TailValues, loaded.TailValues)
}

func TestArtifactStoreMissingIsNotError(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	m, err := store.LoadModel(VariantUnivariate)
	assert.NoError(t, err)
	assert.Nil(t, m)

	r, err := store.LoadReport()
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestArtifactStoreReport(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	rmse := 2.5
	report := &Report{
		Rows:      1000,
		TrainRows: 800,
		TestRows:  200,
		ExogCols:  []string{"temperature", "humidity"},
		ArimaRMSE: &rmse,
		BestModel: string(VariantUnivariate),
		TrainedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveReport(report))

	loaded, err := store.LoadReport()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 1000, loaded.Rows)
	require.NotNil(t, loaded.ArimaRMSE)
	assert.Equal(t, 2.5, *loaded.ArimaRMSE)
	// the multivariate run never happened, its metrics stay null
	assert.Nil(t, loaded.ArimaxRMSE)
}
