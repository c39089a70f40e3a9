package ensemble

import (
	"time"

	"github.com/rs/zerolog"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
)

// Combiner merges per-model results into one forecast. It holds no
// state between cycles; weights live and die inside a single Combine
// call.
type Combiner struct {
	calibrator *Calibrator
	log        zerolog.Logger
}

// NewCombiner wires the combiner to its interval calibrator.
func NewCombiner(calibrator *Calibrator, log zerolog.Logger) *Combiner {
	return &Combiner{
		calibrator: calibrator,
		log:        log.With().Str("component", "combiner").Logger(),
	}
}

// Combine produces the weighted ensemble forecast for one horizon.
// asOf is the last observed timestamp; forecast dates advance from it
// by the horizon's step size.
func (c *Combiner) Combine(results []forecast.ModelResult, horizon core.Horizon, asOf time.Time) (forecast.Result, error) {
	if !horizon.Valid() {
		return forecast.Result{}, core.NewConfigError("horizon", "unknown label "+horizon.String())
	}
	result, err := c.CombinePath(results, horizon.Steps(), horizon.StepSize(), asOf)
	if err != nil {
		return forecast.Result{}, err
	}
	result.Horizon = horizon
	result.Family = horizon.Family()
	return result, nil
}

// CombinePath is Combine for an explicit step count. Walk-forward folds
// use it because a fold's test window need not match a horizon's step
// count.
//
// Per-model failures degrade gracefully: a result with a wrong path
// length or non-finite values is logged and excluded from this cycle.
// Only when nothing survives does the cycle fail.
//
// Combined dispersion is the weight-weighted average of per-model
// dispersions. This assumes independence between model errors and is a
// known source of interval overconfidence kept deliberately: correcting
// it needs a covariance estimate nothing in the pipeline collects yet.
func (c *Combiner) CombinePath(results []forecast.ModelResult, steps int, stepSize time.Duration, asOf time.Time) (forecast.Result, error) {
	if steps < 1 {
		return forecast.Result{}, core.NewConfigError("steps", "must be positive")
	}
	if len(results) == 0 {
		return forecast.Result{}, core.NewInsufficientModelsError(0, 0)
	}

	usable := make([]forecast.ModelResult, 0, len(results))
	var excluded []core.ModelID
	for _, r := range results {
		if err := r.Validate(steps); err != nil {
			c.log.Warn().
				Str("model_id", r.ModelID.String()).
				Err(err).
				Msg("excluding model result: contract violation")
			excluded = append(excluded, r.ModelID)
			continue
		}
		if !r.Finite() {
			c.log.Warn().
				Str("model_id", r.ModelID.String()).
				Msg("excluding model result: non-finite values")
			excluded = append(excluded, r.ModelID)
			continue
		}
		usable = append(usable, r)
	}

	if len(usable) == 0 {
		return forecast.Result{}, core.NewInsufficientModelsError(len(results), len(excluded))
	}

	weights, err := ComputeWeights(usable)
	if err != nil {
		return forecast.Result{}, err
	}

	points := make([]forecast.ForecastPoint, steps)
	for s := 0; s < steps; s++ {
		var mean, dispersion float64
		for _, r := range usable {
			w := weights[r.ModelID]
			mean += w * r.ForecastPath[s]
			dispersion += w * r.DispersionEstimate
		}

		date := core.NewTimestamp(asOf.Add(time.Duration(s+1) * stepSize))
		point, err := c.calibrator.Point(date, mean, dispersion)
		if err != nil {
			return forecast.Result{}, core.NewCalibrationError(s, err.Error())
		}
		points[s] = point
	}

	modelIDs := make([]core.ModelID, len(usable))
	for i, r := range usable {
		modelIDs[i] = r.ModelID
	}

	result := forecast.Result{
		RunID:       core.NewRunID(),
		GeneratedAt: core.Now(),
		Points:      points,
		Weights:     weights,
		ModelIDs:    modelIDs,
		Excluded:    excluded,
	}

	c.log.Info().
		Str("run_id", result.RunID.String()).
		Int("steps", steps).
		Int("models", len(usable)).
		Int("excluded", len(excluded)).
		Interface("weights", weights).
		Msg("ensemble combined")
	return result, nil
}
