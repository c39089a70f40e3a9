// Package walkforward implements leakage-free walk-forward validation:
// repeatedly forecasting over historical folds to measure how the live
// ensemble would have performed.
package walkforward

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
	"ratecast/domain/timeseries"
	"ratecast/domain/validation"
)

// Bounds applied when the configuration leaves them zero. Validation
// runs unattended on a schedule; a pathological input must never be
// able to exhaust the host.
const (
	DefaultMaxFolds     = 100
	DefaultMaxSeriesLen = 10000
)

// ForecasterFunc produces a forecast from a train slice.
//
// CONTRACT: the function sees ONLY the train slice it is handed. If the
// implementation consults any external state keyed by time (a feature
// table, a cache, a fitted model), that state must not extend past the
// train boundary. The validator cannot detect such leakage, and results
// computed with it look excellent and mean nothing.
type ForecasterFunc func(train timeseries.Series, steps int) (forecast.Result, error)

// Config drives fold generation and execution.
type Config struct {
	Mode         validation.Mode `yaml:"mode" default:"expanding"`
	InitialTrain int             `yaml:"initial_train" default:"250"`
	TestWindow   int             `yaml:"test_window" default:"30"`
	Step         int             `yaml:"step" default:"30"`
	MaxFolds     int             `yaml:"max_folds"`
	MaxSeriesLen int             `yaml:"max_series_len"`
	// Parallelism bounds concurrent fold execution. Folds are
	// independent, so any value produces identical results; 0 and 1
	// both mean sequential.
	Parallelism int `yaml:"parallelism"`
}

// Validator runs walk-forward validation. Construction validates the
// configuration; Run never fails on config.
type Validator struct {
	cfg Config
	log zerolog.Logger
}

// New validates cfg and builds a Validator.
func New(cfg Config, log zerolog.Logger) (*Validator, error) {
	if _, err := validation.ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.InitialTrain <= 0 {
		return nil, core.NewConfigError("initial_train", "must be positive")
	}
	if cfg.TestWindow <= 0 {
		return nil, core.NewConfigError("test_window", "must be positive")
	}
	if cfg.Step <= 0 {
		return nil, core.NewConfigError("step", "must be positive")
	}
	if cfg.MaxFolds < 0 || cfg.MaxSeriesLen < 0 || cfg.Parallelism < 0 {
		return nil, core.NewConfigError("bounds", "must not be negative")
	}
	if cfg.MaxFolds == 0 {
		cfg.MaxFolds = DefaultMaxFolds
	}
	if cfg.MaxSeriesLen == 0 {
		cfg.MaxSeriesLen = DefaultMaxSeriesLen
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 1
	}
	return &Validator{
		cfg: cfg,
		log: log.With().Str("component", "walkforward").Logger(),
	}, nil
}

// Run validates the forecaster over the series. A failing or panicking
// fold is recorded with its error and the run continues; per-fold
// failure is data, not a reason to abort.
func (v *Validator) Run(ctx context.Context, series timeseries.Series, horizon core.Horizon, forecaster ForecasterFunc) (validation.Report, error) {
	if forecaster == nil {
		return validation.Report{}, core.NewConfigError("forecaster", "must not be nil")
	}

	if series.Len() > v.cfg.MaxSeriesLen {
		v.log.Warn().
			Int("series_len", series.Len()).
			Int("max", v.cfg.MaxSeriesLen).
			Msg("series exceeds bound, clamping to most recent observations")
		series = series.Tail(v.cfg.MaxSeriesLen)
	}

	minLen := v.cfg.InitialTrain + v.cfg.TestWindow
	if series.Len() < minLen {
		return validation.Report{}, core.NewInsufficientDataError("walk-forward validation", minLen, series.Len())
	}

	folds := generateFolds(series.Len(), v.cfg)
	requested := len(folds)
	if len(folds) > v.cfg.MaxFolds {
		v.log.Warn().
			Int("generated", len(folds)).
			Int("max", v.cfg.MaxFolds).
			Msg("fold count exceeds bound, clamping")
		folds = folds[:v.cfg.MaxFolds]
	}
	if err := checkFolds(folds, series.Len()); err != nil {
		return validation.Report{}, err
	}

	if err := v.runFolds(ctx, series, folds, forecaster); err != nil {
		return validation.Report{}, err
	}

	report := validation.Report{
		RunID:          core.NewRunID(),
		Horizon:        horizon,
		Mode:           v.cfg.Mode,
		GeneratedAt:    core.Now(),
		SeriesLen:      series.Len(),
		RequestedFolds: requested,
		Folds:          folds,
	}
	for _, f := range folds {
		if f.Failed() {
			report.FailedFolds++
			v.log.Error().
				Int("fold", f.Index).
				Str("error", f.Error).
				Msg("fold failed")
		}
	}
	report.Summary = summarize(folds)

	v.log.Info().
		Str("run_id", report.RunID.String()).
		Str("mode", string(report.Mode)).
		Int("folds", len(folds)).
		Int("failed", report.FailedFolds).
		Float64("rmse_mean", report.Summary.Mean.RMSE).
		Float64("coverage95_mean", report.Summary.Mean.Coverage95).
		Msg("walk-forward validation finished")
	return report, nil
}

// runFolds executes folds sequentially or with bounded parallelism.
// Each fold writes only its own slot, so both paths are equivalent.
func (v *Validator) runFolds(ctx context.Context, series timeseries.Series, folds []validation.Fold, forecaster ForecasterFunc) error {
	if v.cfg.Parallelism <= 1 {
		for i := range folds {
			if err := ctx.Err(); err != nil {
				return err
			}
			v.runFold(series, &folds[i], forecaster)
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Parallelism)
	for i := range folds {
		fold := &folds[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v.runFold(series, fold, forecaster)
			return nil
		})
	}
	return g.Wait()
}

// runFold invokes the forecaster on one fold's train slice and scores
// the result against the held-out range. Panics become fold errors.
func (v *Validator) runFold(series timeseries.Series, fold *validation.Fold, forecaster ForecasterFunc) {
	defer func() {
		if r := recover(); r != nil {
			fold.Error = fmt.Sprintf("forecaster panic: %v", r)
		}
	}()

	train := series.Slice(fold.TrainFrom, fold.TrainTo)
	result, err := forecaster(train, fold.TestLen())
	if err != nil {
		fold.Error = err.Error()
		return
	}
	if len(result.Points) < fold.TestLen() {
		fold.Error = fmt.Sprintf("forecaster returned %d points, fold needs %d", len(result.Points), fold.TestLen())
		return
	}

	actuals := series.Slice(fold.TestFrom, fold.TestTo).Values()
	lastTrain := train.Last().Value
	metrics := scoreFold(result.Points, actuals, lastTrain)
	fold.Metrics = &metrics
}
