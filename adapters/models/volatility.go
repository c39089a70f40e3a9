package models

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
	"ratecast/domain/timeseries"
	"ratecast/ports"
)

// Shock-weighted EWMA variance parameters. The decay matches the classic
// daily-data choice; the boost makes negative changes count harder, which
// is the asymmetry short-horizon FX shows.
const (
	shockDecay = 0.94
	shockBoost = 1.5
)

// Anchored volatility windows: a short window that reacts and a long
// window that remembers the level dispersion reverts to.
const (
	anchorShortWindow = 20
	anchorLongWindow  = 120
)

// ShockEWMA centers its path on the last observation and contributes an
// asymmetric dispersion estimate: an exponentially weighted variance of
// daily changes where downside shocks are weighted heavier.
type ShockEWMA struct {
	holdout float64
}

var _ ports.ModelAdapter = (*ShockEWMA)(nil)

func NewShockEWMA(holdoutFraction float64) *ShockEWMA {
	return &ShockEWMA{holdout: holdoutFraction}
}

func (m *ShockEWMA) ID() core.ModelID              { return "shock_ewma" }
func (m *ShockEWMA) Family() core.VolatilityFamily { return core.VolatilityAsymmetricShock }

func (m *ShockEWMA) Forecast(ctx context.Context, series timeseries.Series, steps int) (forecast.ModelResult, error) {
	if err := ctx.Err(); err != nil {
		return forecast.ModelResult{}, err
	}
	if err := checkInput(series, steps); err != nil {
		return forecast.ModelResult{}, err
	}

	values := series.Values()
	start, err := holdoutStart(len(values), m.holdout)
	if err != nil {
		return forecast.ModelResult{}, err
	}
	rmse, _ := oneStepEval(values, start, lastValue)

	variance := 0.0
	for i, d := range diffs(values) {
		weight := 1.0
		if d < 0 {
			weight = shockBoost
		}
		if i == 0 {
			variance = weight * d * d
			continue
		}
		variance = shockDecay*variance + (1-shockDecay)*weight*d*d
	}

	return forecast.ModelResult{
		ModelID:            m.ID(),
		ForecastPath:       flatPath(values[len(values)-1], steps),
		InSampleError:      rmse,
		DispersionEstimate: math.Sqrt(variance),
	}, nil
}

// AnchoredVol centers its path on the last observation and contributes a
// symmetric dispersion estimate pulled toward the long-run level: the
// blend of a reactive short-window variance and a long-window anchor.
type AnchoredVol struct {
	holdout float64
}

var _ ports.ModelAdapter = (*AnchoredVol)(nil)

func NewAnchoredVol(holdoutFraction float64) *AnchoredVol {
	return &AnchoredVol{holdout: holdoutFraction}
}

func (m *AnchoredVol) ID() core.ModelID              { return "anchored_vol" }
func (m *AnchoredVol) Family() core.VolatilityFamily { return core.VolatilityMeanReverting }

func (m *AnchoredVol) Forecast(ctx context.Context, series timeseries.Series, steps int) (forecast.ModelResult, error) {
	if err := ctx.Err(); err != nil {
		return forecast.ModelResult{}, err
	}
	if err := checkInput(series, steps); err != nil {
		return forecast.ModelResult{}, err
	}

	values := series.Values()
	start, err := holdoutStart(len(values), m.holdout)
	if err != nil {
		return forecast.ModelResult{}, err
	}
	rmse, _ := oneStepEval(values, start, lastValue)

	changes := diffs(values)
	shortVar := windowVariance(changes, anchorShortWindow)
	longVar := windowVariance(changes, anchorLongWindow)

	return forecast.ModelResult{
		ModelID:            m.ID(),
		ForecastPath:       flatPath(values[len(values)-1], steps),
		InSampleError:      rmse,
		DispersionEstimate: math.Sqrt(0.5*shortVar + 0.5*longVar),
	}, nil
}

func lastValue(prefix []float64) float64 { return prefix[len(prefix)-1] }

func flatPath(level float64, steps int) []float64 {
	path := make([]float64, steps)
	for k := range path {
		path[k] = level
	}
	return path
}

func diffs(values []float64) []float64 {
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

func windowVariance(changes []float64, window int) float64 {
	if len(changes) > window {
		changes = changes[len(changes)-window:]
	}
	if len(changes) < 2 {
		return changes[0] * changes[0]
	}
	v := stat.Variance(changes, nil)
	if math.IsNaN(v) {
		return 0
	}
	return v
}
