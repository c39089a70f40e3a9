package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
	"ratecast/domain/timeseries"
	"ratecast/domain/validation"
	"ratecast/internal/ensemble"
	"ratecast/internal/walkforward"
	"ratecast/ports"
)

// ValidationService runs walk-forward validation of the live ensemble
// and appends the outcome to history. The fold forecaster is the same
// adapter-and-combine path the forecast job uses, fitted per fold on the
// train slice alone.
type ValidationService struct {
	reader    ports.SeriesReader
	adapters  []ports.ModelAdapter
	combiner  *ensemble.Combiner
	validator *walkforward.Validator
	store     ports.HistoryStore
	log       zerolog.Logger
}

func NewValidationService(
	reader ports.SeriesReader,
	adapters []ports.ModelAdapter,
	combiner *ensemble.Combiner,
	validator *walkforward.Validator,
	store ports.HistoryStore,
	log zerolog.Logger,
) *ValidationService {
	return &ValidationService{
		reader:    reader,
		adapters:  adapters,
		combiner:  combiner,
		validator: validator,
		store:     store,
		log:       log.With().Str("component", "validation_service").Logger(),
	}
}

// Run validates the ensemble over the series history and records the
// report. The append failing does not invalidate the computed report;
// both come back so the caller can decide what a persistence failure
// means for its exit status.
func (s *ValidationService) Run(ctx context.Context, source string, horizon core.Horizon) (validation.Report, error) {
	if !horizon.Valid() {
		return validation.Report{}, core.NewConfigError("horizon", "unknown label "+horizon.String())
	}

	series, err := s.reader.Read(ctx, source)
	if err != nil {
		return validation.Report{}, err
	}

	report, err := s.validator.Run(ctx, series, horizon, s.foldForecaster(ctx, horizon))
	if err != nil {
		return validation.Report{}, err
	}

	key, rec, err := ports.NewValidationRecord(report)
	if err != nil {
		return report, err
	}
	if err := s.store.Append(ctx, key, rec); err != nil {
		return report, fmt.Errorf("record validation report: %w", err)
	}
	return report, nil
}

// History returns past validation reports for the horizon, oldest first.
func (s *ValidationService) History(ctx context.Context, horizon core.Horizon) ([]validation.Report, error) {
	key := ports.HistoryKey{Metric: ports.MetricFoldMetrics, Horizon: horizon}
	records, err := s.store.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return ports.DecodeValidationReports(records)
}

// foldForecaster builds the per-fold forecaster. Each invocation sees
// only its train slice; models are refitted from scratch inside it, so
// nothing fitted on a later fold can leak into an earlier one.
func (s *ValidationService) foldForecaster(ctx context.Context, horizon core.Horizon) walkforward.ForecasterFunc {
	return func(train timeseries.Series, steps int) (forecast.Result, error) {
		selected := ports.SelectAdapters(s.adapters, horizon)
		results := make([]forecast.ModelResult, 0, len(selected))
		for _, adapter := range selected {
			result, err := adapter.Forecast(ctx, train, steps)
			if err != nil {
				// Short early folds starve some models; that is fold
				// data, not a run failure.
				continue
			}
			results = append(results, result)
		}
		return s.combiner.CombinePath(results, steps, horizon.StepSize(), train.Last().Time.Time())
	}
}
