// Package app wires the domain engines to their adapters: each service
// is one scheduled job's orchestration, kept free of statistics so the
// engines stay testable without IO.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
	"ratecast/domain/timeseries"
	"ratecast/internal/ensemble"
	"ratecast/ports"
)

// ForecastService produces the combined multi-step forecast for one
// horizon: load the series, run every participating model, combine.
type ForecastService struct {
	reader   ports.SeriesReader
	adapters []ports.ModelAdapter
	combiner *ensemble.Combiner
	log      zerolog.Logger
}

func NewForecastService(reader ports.SeriesReader, adapters []ports.ModelAdapter, combiner *ensemble.Combiner, log zerolog.Logger) *ForecastService {
	return &ForecastService{
		reader:   reader,
		adapters: adapters,
		combiner: combiner,
		log:      log.With().Str("component", "forecast_service").Logger(),
	}
}

// Run executes one forecast cycle against the configured source.
func (s *ForecastService) Run(ctx context.Context, source string, horizon core.Horizon) (forecast.Result, error) {
	if !horizon.Valid() {
		return forecast.Result{}, core.NewConfigError("horizon", "unknown label "+horizon.String())
	}

	series, err := s.reader.Read(ctx, source)
	if err != nil {
		return forecast.Result{}, err
	}

	results := s.collectResults(ctx, series, horizon, horizon.Steps())
	return s.combiner.Combine(results, horizon, series.Last().Time.Time())
}

// collectResults runs every adapter selected for the horizon. A failing
// adapter is logged and skipped; whether anything survives is the
// combiner's call.
func (s *ForecastService) collectResults(ctx context.Context, series timeseries.Series, horizon core.Horizon, steps int) []forecast.ModelResult {
	selected := ports.SelectAdapters(s.adapters, horizon)
	results := make([]forecast.ModelResult, 0, len(selected))
	for _, adapter := range selected {
		result, err := adapter.Forecast(ctx, series, steps)
		if err != nil {
			s.log.Warn().
				Str("model_id", adapter.ID().String()).
				Str("horizon", horizon.String()).
				Err(err).
				Msg("model adapter failed, excluding from cycle")
			continue
		}
		results = append(results, result)
	}
	return results
}
