package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Variant names the model family, matching the wire-level names clients see
type Variant string

const (
	// VariantUnivariate is the soil-history-only model
	VariantUnivariate Variant = "ARIMA"
	// VariantMultivariate adds exogenous environment regressors
	VariantMultivariate Variant = "ARIMAX"
)

// Order holds the selected autoregressive order and differencing degree
type Order struct {
	P int `json:"p"`
	D int `json:"d"`
}

// Fit errors
var (
	ErrSeriesTooShort = errors.New("series too short to fit")
	ErrExogMismatch   = errors.New("exogenous values do not match trained columns")
)

// Model is a fitted autoregressive forecasting artifact with optional
// exogenous regressors. The order is selected automatically up to maxOrder by
// corrected AIC; coefficients come from a conditional least-squares fit. It
// serializes to JSON so artifacts survive process restarts.
type Model struct {
	Variant     Variant   `json:"variant"`
	Order       Order     `json:"order"`
	Intercept   float64   `json:"intercept"`
	Phi         []float64 `json:"phi"`
	Beta        []float64 `json:"beta,omitempty"`
	ExogCols    []string  `json:"exog_cols,omitempty"`
	ResidualStd float64   `json:"residual_std"`
	TailValues  []float64 `json:"tail_values"`
	LastExog    []float64 `json:"last_exog,omitempty"`
	TrainedAt   time.Time `json:"trained_at"`
}

// Prediction is one forecast step with a 95% confidence interval
type Prediction struct {
	Step  int     `json:"step"`
	Value float64 `json:"value"`
	Lower float64 `json:"ci_lower"`
	Upper float64 `json:"ci_upper"`
}

// Fit trains a model on a time-ordered series. exog may be nil for the
// univariate variant; when present it must have one row per observation with
// columns matching exogCols. The search is bounded: p in [1,maxOrder],
// d in {0,1}, picked by corrected AIC on the conditional least-squares fit.
func Fit(series []float64, exog [][]float64, exogCols []string, maxOrder int) (*Model, error) {
	if maxOrder < 1 {
		maxOrder = 1
	}
	k := len(exogCols)
	if k > 0 && len(exog) != len(series) {
		return nil, fmt.Errorf("%w: %d exog rows for %d observations", ErrExogMismatch, len(exog), len(series))
	}
	if len(series) < maxOrder+k+4 {
		return nil, fmt.Errorf("%w: %d observations", ErrSeriesTooShort, len(series))
	}

	d := selectDifferencing(series)

	var best *Model
	bestAICc := math.Inf(1)
	for p := 1; p <= maxOrder; p++ {
		m, aicc, err := fitOrder(series, exog, exogCols, p, d)
		if err != nil {
			continue
		}
		if aicc < bestAICc {
			bestAICc = aicc
			best = m
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no order in [1,%d] produced a valid fit", ErrSeriesTooShort, maxOrder)
	}

	best.TrainedAt = time.Now().UTC()
	if k > 0 {
		best.Variant = VariantMultivariate
		best.LastExog = append([]float64(nil), exog[len(exog)-1]...)
	} else {
		best.Variant = VariantUnivariate
	}
	return best, nil
}

// selectDifferencing picks d in {0,1} by the variance-minimization heuristic:
// if first differencing lowers the sample variance the series is treated as
// non-stationary in level.
func selectDifferencing(series []float64) int {
	if len(series) < 3 {
		return 0
	}
	diffed := difference(series)
	if sampleVariance(diffed) < sampleVariance(series) {
		return 1
	}
	return 0
}

// fitOrder runs one conditional least-squares fit for a fixed (p,d) and
// returns the model plus its corrected AIC.
func fitOrder(series []float64, exog [][]float64, exogCols []string, p, d int) (*Model, float64, error) {
	z := series
	x := exog
	if d == 1 {
		z = difference(series)
		if len(x) > 0 {
			x = x[1:]
		}
	}

	k := len(exogCols)
	rows := len(z) - p
	cols := 1 + p + k
	if rows <= cols+1 {
		return nil, 0, fmt.Errorf("%w: %d usable rows for %d coefficients", ErrSeriesTooShort, rows, cols)
	}

	design := mat.NewDense(rows, cols, nil)
	target := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		t := i + p
		design.Set(i, 0, 1)
		for lag := 1; lag <= p; lag++ {
			design.Set(i, lag, z[t-lag])
		}
		for j := 0; j < k; j++ {
			design.Set(i, 1+p+j, x[t][j])
		}
		target.SetVec(i, z[t])
	}

	var coef mat.VecDense
	if err := coef.SolveVec(design, target); err != nil {
		return nil, 0, fmt.Errorf("least squares solve failed: %w", err)
	}

	// residual sum of squares
	var fitted mat.VecDense
	fitted.MulVec(design, &coef)
	var sse float64
	for i := 0; i < rows; i++ {
		r := target.AtVec(i) - fitted.AtVec(i)
		sse += r * r
	}
	if sse <= 0 {
		sse = 1e-12
	}

	n := float64(rows)
	nParams := float64(cols + 1) // coefficients plus innovation variance
	aicc := n*math.Log(sse/n) + 2*nParams
	if n-nParams-1 > 0 {
		aicc += 2 * nParams * (nParams + 1) / (n - nParams - 1)
	}

	phi := make([]float64, p)
	for lag := 1; lag <= p; lag++ {
		phi[lag-1] = coef.AtVec(lag)
	}
	beta := make([]float64, k)
	for j := 0; j < k; j++ {
		beta[j] = coef.AtVec(1 + p + j)
	}

	tail := append([]float64(nil), series[len(series)-(p+d):]...)

	m := &Model{
		Order:       Order{P: p, D: d},
		Intercept:   coef.AtVec(0),
		Phi:         phi,
		Beta:        beta,
		ExogCols:    append([]string(nil), exogCols...),
		ResidualStd: math.Sqrt(sse / (n - float64(cols))),
		TailValues:  tail,
	}
	return m, aicc, nil
}

// Forecast produces steps predictions ahead of the training tail. For the
// multivariate variant exogFuture must hold one row per step with columns in
// ExogCols order; callers that lack future exogenous values repeat the last
// known vector, a documented simplification rather than a forecast of the
// exogenous series themselves.
func (m *Model) Forecast(steps int, exogFuture [][]float64) ([]Prediction, error) {
	if steps < 1 {
		steps = 1
	}
	k := len(m.ExogCols)
	if k > 0 {
		if len(exogFuture) < steps {
			return nil, fmt.Errorf("%w: need %d exog rows, got %d", ErrExogMismatch, steps, len(exogFuture))
		}
		for i := 0; i < steps; i++ {
			if len(exogFuture[i]) != k {
				return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrExogMismatch, i, len(exogFuture[i]), k)
			}
		}
	}

	p, d := m.Order.P, m.Order.D
	if len(m.TailValues) < p+d {
		return nil, fmt.Errorf("%w: artifact tail too short", ErrSeriesTooShort)
	}

	// working state: last p differenced values, newest last
	var zHist []float64
	lastLevel := m.TailValues[len(m.TailValues)-1]
	if d == 0 {
		zHist = append([]float64(nil), m.TailValues[len(m.TailValues)-p:]...)
	} else {
		diffs := difference(m.TailValues)
		zHist = append([]float64(nil), diffs[len(diffs)-p:]...)
	}

	out := make([]Prediction, 0, steps)
	for s := 1; s <= steps; s++ {
		zNext := m.Intercept
		for lag := 1; lag <= p; lag++ {
			zNext += m.Phi[lag-1] * zHist[len(zHist)-lag]
		}
		for j := 0; j < k; j++ {
			zNext += m.Beta[j] * exogFuture[s-1][j]
		}
		zHist = append(zHist, zNext)

		value := zNext
		if d == 1 {
			value = lastLevel + zNext
			lastLevel = value
		}

		// interval widens with horizon; exact psi-weight variance is not
		// tracked by this artifact format
		half := 1.96 * m.ResidualStd * math.Sqrt(float64(s))
		out = append(out, Prediction{
			Step:  s,
			Value: value,
			Lower: value - half,
			Upper: value + half,
		})
	}
	return out, nil
}

// RepeatExog builds a steps-long exogenous matrix by repeating one vector
func RepeatExog(vector []float64, steps int) [][]float64 {
	rows := make([][]float64, steps)
	for i := range rows {
		rows[i] = append([]float64(nil), vector...)
	}
	return rows
}

func difference(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = series[i] - series[i-1]
	}
	return out
}

func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.Variance(xs, nil)
}
