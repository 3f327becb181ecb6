package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthetic AR(1) series around a drifting mean, long enough for the order
// search to behave
func syntheticSeries(n int) []float64 {
	series := make([]float64, n)
	series[0] = 50
	for i := 1; i < n; i++ {
		series[i] = 10 + 0.8*series[i-1] + 3*math.Sin(float64(i)/7)
	}
	return series
}

func TestFitUnivariate(t *testing.T) {
	series := syntheticSeries(200)

	m, err := Fit(series, nil, nil, 5)
	require.NoError(t, err)

	assert.Equal(t, VariantUnivariate, m.Variant)
	assert.GreaterOrEqual(t, m.Order.P, 1)
	assert.LessOrEqual(t, m.Order.P, 5)
	assert.Len(t, m.Phi, m.Order.P)
	assert.Empty(t, m.Beta)
	assert.GreaterOrEqual(t, len(m.TailValues), m.Order.P)
	assert.False(t, m.TrainedAt.IsZero())
}

func TestFitMultivariate(t *testing.T) {
	series := syntheticSeries(200)
	exog := make([][]float64, len(series))
	for i := range exog {
		exog[i] = []float64{25 + math.Sin(float64(i)/10), 60 - float64(i%5)}
	}

	m, err := Fit(series, exog, []string{"temperature", "humidity"}, 5)
	require.NoError(t, err)

	assert.Equal(t, VariantMultivariate, m.Variant)
	assert.Len(t, m.Beta, 2)
	assert.Equal(t, []string{"temperature", "humidity"}, m.ExogCols)
	assert.Equal(t, exog[len(exog)-1], m.LastExog)
}

func TestFitSeriesTooShort(t *testing.T) {
	_, err := Fit([]float64{1, 2, 3}, nil, nil, 5)
	assert.ErrorIs(t, err, ErrSeriesTooShort)
}

func TestFitExogRowMismatch(t *testing.T) {
	series := syntheticSeries(50)
	exog := make([][]float64, 10)
	for i := range exog {
		exog[i] = []float64{1}
	}
	_, err := Fit(series, exog, []string{"temperature"}, 3)
	assert.ErrorIs(t, err, ErrExogMismatch)
}

func TestForecastHorizonAndIntervals(t *testing.T) {
	m, err := Fit(syntheticSeries(200), nil, nil, 5)
	require.NoError(t, err)

	preds, err := m.Forecast(10, nil)
	require.NoError(t, err)
	require.Len(t, preds, 10)

	for i, p := range preds {
		assert.Equal(t, i+1, p.Step)
		assert.LessOrEqual(t, p.Lower, p.Value)
		assert.GreaterOrEqual(t, p.Upper, p.Value)
	}

	// intervals widen with the horizon
	first := preds[0].Upper - preds[0].Lower
	last := preds[9].Upper - preds[9].Lower
	assert.Greater(t, last, first)
}

func TestForecastRequiresExogRows(t *testing.T) {
	series := syntheticSeries(100)
	exog := make([][]float64, len(series))
	for i := range exog {
		exog[i] = []float64{25}
	}
	m, err := Fit(series, exog, []string{"temperature"}, 3)
	require.NoError(t, err)

	// too few rows
	_, err = m.Forecast(5, [][]float64{{25}})
	assert.ErrorIs(t, err, ErrExogMismatch)

	// wrong width
	_, err = m.Forecast(2, [][]float64{{25, 60}, {25, 60}})
	assert.ErrorIs(t, err, ErrExogMismatch)

	// repeating the last known vector satisfies the contract
	preds, err := m.Forecast(5, RepeatExog(m.LastExog, 5))
	require.NoError(t, err)
	assert.Len(t, preds, 5)
}

func TestRepeatExog(t *testing.T) {
	rows := RepeatExog([]float64{1, 2}, 3)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, []float64{1, 2}, row)
	}

	// rows are independent copies
	rows[0][0] = 99
	assert.Equal(t, 1.0, rows[1][0])
}

func TestForecastStepsFloor(t *testing.T) {
	m, err := Fit(syntheticSeries(100), nil, nil, 3)
	require.NoError(t, err)

	preds, err := m.Forecast(0, nil)
	require.NoError(t, err)
	assert.Len(t, preds, 1)
}
