package forecast

import (
	"github.com/agrisense/irrigation-backend/internal/db/models"
)

// ExogenousCandidates are the environment columns considered for the
// multivariate model, in canonical order. Training uses the subset that is
// actually populated in the dataset.
var ExogenousCandidates = []string{"temperature", "humidity", "rain_pct", "light_pct", "flow"}

// NormalizePercent converts a raw sensor value to a percentage. Values above
// 100 are treated as ADC counts and scaled by fullScale; values already in
// percent range pass through, so re-normalizing an already normalized value
// is a no-op. The result is clamped to [0,100].
func NormalizePercent(value, fullScale float64) float64 {
	if fullScale <= 0 {
		fullScale = 4095
	}
	if value > 100 {
		value = value / fullScale * 100
	}
	return ClampPercent(value)
}

// ClampPercent clamps v to the [0,100] range
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Series is the prepared training input: the soil-moisture target plus the
// exogenous matrix (one row per observation, one column per name in ExogCols).
type Series struct {
	Target   []float64
	Exog     [][]float64
	ExogCols []string
}

// PrepareSeries builds a Series from time-ordered readings. Exogenous
// candidates that are entirely zero across the dataset are treated as absent
// sensors and excluded, mirroring the column-presence check the rolling
// dataset would apply.
func PrepareSeries(readings []models.SensorReading) Series {
	target := make([]float64, len(readings))
	for i := range readings {
		target[i] = readings[i].SoilMoisture
	}

	cols := presentExogenousColumns(readings)
	if len(cols) == 0 {
		return Series{Target: target}
	}

	exog := make([][]float64, len(readings))
	for i := range readings {
		vals, ok := readings[i].ExogenousValues(cols)
		if !ok {
			// unknown column name cannot happen for candidates
			continue
		}
		exog[i] = vals
	}

	return Series{Target: target, Exog: exog, ExogCols: cols}
}

// presentExogenousColumns returns the candidate columns with at least one
// non-zero observation
func presentExogenousColumns(readings []models.SensorReading) []string {
	var cols []string
	for _, c := range ExogenousCandidates {
		for i := range readings {
			vals, _ := readings[i].ExogenousValues([]string{c})
			if len(vals) == 1 && vals[0] != 0 {
				cols = append(cols, c)
				break
			}
		}
	}
	return cols
}

// SplitTrainTest splits a series time-ordered: the final fraction is the
// holdout. At least minTest observations go to the test split.
func SplitTrainTest(n int, testFraction float64, minTest int) (trainN, testN int) {
	testN = int(float64(n) * testFraction)
	if testN < minTest {
		testN = minTest
	}
	if testN >= n {
		testN = n - 1
	}
	trainN = n - testN
	return trainN, testN
}
