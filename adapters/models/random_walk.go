package models

import (
	"context"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
	"ratecast/domain/timeseries"
	"ratecast/ports"
)

// RandomWalk forecasts with drift: each step extends the last observed
// value by the mean historical change. The no-skill baseline every other
// technique has to beat, kept in the ensemble so weights stay honest.
type RandomWalk struct {
	holdout float64
}

var _ ports.ModelAdapter = (*RandomWalk)(nil)

func NewRandomWalk(holdoutFraction float64) *RandomWalk {
	return &RandomWalk{holdout: holdoutFraction}
}

func (m *RandomWalk) ID() core.ModelID              { return "random_walk" }
func (m *RandomWalk) Family() core.VolatilityFamily { return "" }

func (m *RandomWalk) Forecast(ctx context.Context, series timeseries.Series, steps int) (forecast.ModelResult, error) {
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
	rmse, residStd := oneStepEval(values, start, driftPredict)

	last := values[len(values)-1]
	d := meanDiff(values)
	path := make([]float64, steps)
	for k := range path {
		path[k] = last + float64(k+1)*d
	}

	return forecast.ModelResult{
		ModelID:            m.ID(),
		ForecastPath:       path,
		InSampleError:      rmse,
		DispersionEstimate: residStd,
	}, nil
}

func driftPredict(prefix []float64) float64 {
	return prefix[len(prefix)-1] + meanDiff(prefix)
}

func meanDiff(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	// Mean of consecutive differences telescopes to (last-first)/(n-1).
	return (values[len(values)-1] - values[0]) / float64(len(values)-1)
}
