package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRMSE(t *testing.T) {
	assert.Equal(t, 0.0, RMSE([]float64{1, 2, 3}, []float64{1, 2, 3}))
	assert.InDelta(t, 1.0, RMSE([]float64{1, 2, 3}, []float64{2, 3, 4}), 1e-9)
	assert.True(t, math.IsNaN(RMSE(nil, nil)))
	assert.True(t, math.IsNaN(RMSE([]float64{1}, []float64{1, 2})))
}

func TestMAPE(t *testing.T) {
	// 10% off on every point
	got := MAPE([]float64{10, 20, 40}, []float64{11, 22, 44})
	assert.InDelta(t, 0.1, got, 1e-9)

	// zero actuals are skipped, not divided by
	got = MAPE([]float64{0, 10}, []float64{5, 11})
	assert.InDelta(t, 0.1, got, 1e-9)

	// all-zero actuals have no defined MAPE
	assert.True(t, math.IsNaN(MAPE([]float64{0, 0}, []float64{1, 2})))
}
