package ports

import (
	"context"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
	"ratecast/domain/timeseries"
)

// ModelAdapter is the fixed contract every forecasting technique plugs
// in through. The ensemble never learns which concrete technique
// produced a result, only its error statistics. Implementations must be
// safe to call from concurrent scheduled jobs and must not retain or
// mutate the series they are given.
type ModelAdapter interface {
	// ID is stable across runs and unique within a registered set.
	ID() core.ModelID

	// Family tags volatility models with the shock behavior they
	// capture. Point-forecast models return the empty family and are
	// included at every horizon; volatility models are included only
	// when their family matches the horizon's static preference.
	Family() core.VolatilityFamily

	// Forecast produces steps future predictions from the series. The
	// result is fresh per invocation; adapters never reuse state
	// between calls beyond their fitted configuration.
	Forecast(ctx context.Context, series timeseries.Series, steps int) (forecast.ModelResult, error)
}

// SelectAdapters filters a registered set down to the adapters that
// participate at the given horizon: every point-forecast adapter plus
// the volatility adapters whose family the horizon prefers. The choice
// is a lookup by horizon label, never a data-driven decision.
func SelectAdapters(adapters []ModelAdapter, horizon core.Horizon) []ModelAdapter {
	out := make([]ModelAdapter, 0, len(adapters))
	for _, a := range adapters {
		if fam := a.Family(); fam != "" && fam != horizon.Family() {
			continue
		}
		out = append(out, a)
	}
	return out
}
