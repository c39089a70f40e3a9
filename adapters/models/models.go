// Package models provides the baseline forecasting techniques behind the
// ensemble. Every adapter follows the same recipe: fit on a training
// prefix, measure one-step-ahead error on a trailing holdout, and report
// that error so the ensemble can weight contributions by recent skill.
// Point-forecast adapters carry an empty volatility family and run at
// every horizon; the volatility adapters are tagged with the shock
// behavior they capture and run only where the horizon prefers it.
package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"ratecast/domain/core"
	"ratecast/domain/timeseries"
	"ratecast/ports"
)

const (
	DefaultEWMAAlpha       = 0.3
	DefaultTrendWindow     = 60
	DefaultHoldoutFraction = 0.2

	// minFit is the smallest prefix any adapter will fit on.
	minFit = 3
)

// Options carries the tunables shared across the registry. Zero values
// fall back to the defaults above.
type Options struct {
	EWMAAlpha       float64
	TrendWindow     int
	HoldoutFraction float64
}

func (o Options) withDefaults() Options {
	if o.EWMAAlpha == 0 {
		o.EWMAAlpha = DefaultEWMAAlpha
	}
	if o.TrendWindow == 0 {
		o.TrendWindow = DefaultTrendWindow
	}
	if o.HoldoutFraction == 0 {
		o.HoldoutFraction = DefaultHoldoutFraction
	}
	return o
}

func (o Options) validate() error {
	if o.EWMAAlpha <= 0 || o.EWMAAlpha > 1 {
		return core.NewConfigError("models.ewma_alpha", fmt.Sprintf("%v outside (0, 1]", o.EWMAAlpha))
	}
	if o.TrendWindow < minFit {
		return core.NewConfigError("models.trend_window", fmt.Sprintf("%d below minimum %d", o.TrendWindow, minFit))
	}
	if o.HoldoutFraction <= 0 || o.HoldoutFraction >= 1 {
		return core.NewConfigError("models.holdout_fraction", fmt.Sprintf("%v outside (0, 1)", o.HoldoutFraction))
	}
	return nil
}

// Build constructs the named adapters. Names match the config's enabled
// list; an unknown or repeated name is a configuration error.
func Build(enabled []string, opts Options) ([]ports.ModelAdapter, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(enabled))
	out := make([]ports.ModelAdapter, 0, len(enabled))
	for _, name := range enabled {
		if seen[name] {
			return nil, core.NewConfigError("models.enabled", fmt.Sprintf("model %q listed twice", name))
		}
		seen[name] = true

		switch name {
		case "random_walk":
			out = append(out, NewRandomWalk(opts.HoldoutFraction))
		case "ewma":
			out = append(out, NewEWMA(opts.EWMAAlpha, opts.HoldoutFraction))
		case "ols_trend":
			out = append(out, NewOLSTrend(opts.TrendWindow, opts.HoldoutFraction))
		case "shock_ewma":
			out = append(out, NewShockEWMA(opts.HoldoutFraction))
		case "anchored_vol":
			out = append(out, NewAnchoredVol(opts.HoldoutFraction))
		default:
			return nil, core.NewConfigError("models.enabled", fmt.Sprintf(
				"unknown model %q (known: random_walk, ewma, ols_trend, shock_ewma, anchored_vol)", name))
		}
	}
	if len(out) == 0 {
		return nil, core.NewConfigError("models.enabled", "no models enabled")
	}
	return out, nil
}

// holdoutStart returns the index where the holdout begins. The holdout
// always keeps at least one observation and leaves at least minFit for
// training.
func holdoutStart(n int, fraction float64) (int, error) {
	hold := int(math.Round(float64(n) * fraction))
	if hold < 1 {
		hold = 1
	}
	start := n - hold
	if start < minFit {
		return 0, core.NewInsufficientDataError("model training split", minFit+1, n)
	}
	return start, nil
}

// oneStepEval walks the holdout left to right, predicting each value
// from the prefix before it. Returns the RMSE of the predictions and the
// sample standard deviation of the residuals.
func oneStepEval(values []float64, start int, predict func(prefix []float64) float64) (rmse, residStd float64) {
	residuals := make([]float64, 0, len(values)-start)
	var sq float64
	for i := start; i < len(values); i++ {
		pred := predict(values[:i])
		resid := values[i] - pred
		residuals = append(residuals, resid)
		sq += resid * resid
	}
	rmse = math.Sqrt(sq / float64(len(residuals)))
	if len(residuals) > 1 {
		residStd = stat.StdDev(residuals, nil)
	} else {
		residStd = math.Abs(residuals[0])
	}
	return rmse, residStd
}

// checkInput enforces the shared preconditions on a forecast call.
func checkInput(series timeseries.Series, steps int) error {
	if steps < 1 {
		return core.NewConfigError("steps", fmt.Sprintf("%d below 1", steps))
	}
	if series.Len() < minFit+1 {
		return core.NewInsufficientDataError("forecast series", minFit+1, series.Len())
	}
	return nil
}
