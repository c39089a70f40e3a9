package models

import (
	"context"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
	"ratecast/domain/timeseries"
	"ratecast/ports"
)

// EWMA forecasts the exponentially smoothed level: a flat path at the
// smoothed value. High alpha chases the latest observation, low alpha
// averages across history.
type EWMA struct {
	alpha   float64
	holdout float64
}

var _ ports.ModelAdapter = (*EWMA)(nil)

func NewEWMA(alpha, holdoutFraction float64) *EWMA {
	return &EWMA{alpha: alpha, holdout: holdoutFraction}
}

func (m *EWMA) ID() core.ModelID              { return "ewma" }
func (m *EWMA) Family() core.VolatilityFamily { return "" }

func (m *EWMA) Forecast(ctx context.Context, series timeseries.Series, steps int) (forecast.ModelResult, error) {
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
	rmse, residStd := oneStepEval(values, start, func(prefix []float64) float64 {
		return smooth(prefix, m.alpha)
	})

	level := smooth(values, m.alpha)
	path := make([]float64, steps)
	for k := range path {
		path[k] = level
	}

	return forecast.ModelResult{
		ModelID:            m.ID(),
		ForecastPath:       path,
		InSampleError:      rmse,
		DispersionEstimate: residStd,
	}, nil
}

func smooth(values []float64, alpha float64) float64 {
	s := values[0]
	for _, v := range values[1:] {
		s = alpha*v + (1-alpha)*s
	}
	return s
}
