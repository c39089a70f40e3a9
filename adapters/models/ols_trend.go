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

// OLSTrend fits a straight line to the trailing window and extrapolates
// it. Windowed so a decade-old regime does not drag on today's slope.
type OLSTrend struct {
	window  int
	holdout float64
}

var _ ports.ModelAdapter = (*OLSTrend)(nil)

func NewOLSTrend(window int, holdoutFraction float64) *OLSTrend {
	return &OLSTrend{window: window, holdout: holdoutFraction}
}

func (m *OLSTrend) ID() core.ModelID              { return "ols_trend" }
func (m *OLSTrend) Family() core.VolatilityFamily { return "" }

func (m *OLSTrend) Forecast(ctx context.Context, series timeseries.Series, steps int) (forecast.ModelResult, error) {
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
	rmse, _ := oneStepEval(values, start, func(prefix []float64) float64 {
		alpha, beta, _ := m.fit(prefix)
		w := min(len(prefix), m.window)
		return alpha + beta*float64(w)
	})

	alpha, beta, residStd := m.fit(values)
	w := min(len(values), m.window)
	path := make([]float64, steps)
	for k := range path {
		path[k] = alpha + beta*float64(w+k)
	}

	return forecast.ModelResult{
		ModelID:            m.ID(),
		ForecastPath:       path,
		InSampleError:      rmse,
		DispersionEstimate: residStd,
	}, nil
}

// fit regresses the trailing window on its 0-based position and returns
// the intercept, slope and residual standard deviation around the line.
func (m *OLSTrend) fit(values []float64) (alpha, beta, residStd float64) {
	w := min(len(values), m.window)
	tail := values[len(values)-w:]
	xs := make([]float64, w)
	for i := range xs {
		xs[i] = float64(i)
	}

	alpha, beta = stat.LinearRegression(xs, tail, nil, false)

	residuals := make([]float64, w)
	for i, y := range tail {
		residuals[i] = y - (alpha + beta*xs[i])
	}
	residStd = stat.StdDev(residuals, nil)
	if math.IsNaN(residStd) {
		residStd = 0
	}
	return alpha, beta, residStd
}
