package forecast

import (
	"math"

	"ratecast/domain/core"
)

// ModelResult is one model's contribution to an ensemble cycle.
// INVARIANTS:
// - ForecastPath length equals the horizon step count
// - InSampleError and DispersionEstimate are non-negative
// Created fresh per forecast invocation by a ModelAdapter, immutable once
// produced, consumed and discarded by the combiner.
type ModelResult struct {
	ModelID            core.ModelID `json:"model_id"`
	ForecastPath       []float64    `json:"forecast_path"`
	InSampleError      float64      `json:"in_sample_error"`
	DispersionEstimate float64      `json:"dispersion_estimate"`
}

// Validate checks the result against the requested horizon step count.
func (r ModelResult) Validate(steps int) error {
	if r.ModelID == "" {
		return core.NewConfigError("model_result", "empty model id")
	}
	if len(r.ForecastPath) != steps {
		return core.NewConfigError("forecast_path", "length does not match horizon steps")
	}
	if r.InSampleError < 0 {
		return core.NewConfigError("in_sample_error", "negative")
	}
	if r.DispersionEstimate < 0 {
		return core.NewConfigError("dispersion_estimate", "negative")
	}
	return nil
}

// Finite reports whether every numeric field of the result is finite.
// The combiner excludes non-finite results instead of failing the cycle.
func (r ModelResult) Finite() bool {
	if math.IsNaN(r.InSampleError) || math.IsInf(r.InSampleError, 0) {
		return false
	}
	if math.IsNaN(r.DispersionEstimate) || math.IsInf(r.DispersionEstimate, 0) {
		return false
	}
	for _, v := range r.ForecastPath {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// EnsembleWeights maps model IDs to their normalized inverse-error
// weights for one cycle. Derived, ephemeral: recomputed every cycle from
// the current ModelResults and never persisted as ground truth. Logged
// for audit only.
type EnsembleWeights map[core.ModelID]float64

// Sum totals the weights. Valid weights sum to 1 within 1e-9.
func (w EnsembleWeights) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Validate enforces the normalization invariant.
func (w EnsembleWeights) Validate() error {
	if len(w) == 0 {
		return core.NewInsufficientModelsError(0, 0)
	}
	for id, v := range w {
		if v < 0 || math.IsNaN(v) {
			return core.NewConfigError("weights", "negative or NaN weight for "+id.String())
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return core.NewConfigError("weights", "do not sum to 1.0")
	}
	return nil
}

// ForecastPoint is one future step of the combined forecast.
// INVARIANTS:
// - CI80Low <= Mean <= CI80High
// - the 95% band strictly contains the 80% band
// Band width growth across steps is checked empirically by validation,
// not enforced here.
type ForecastPoint struct {
	Date     core.Timestamp `json:"date"`
	Mean     float64        `json:"mean"`
	CI80Low  float64        `json:"ci80_low"`
	CI80High float64        `json:"ci80_high"`
	CI95Low  float64        `json:"ci95_low"`
	CI95High float64        `json:"ci95_high"`
}

// Covers80 reports whether the realized value fell inside the 80% band.
func (p ForecastPoint) Covers80(actual float64) bool {
	return actual >= p.CI80Low && actual <= p.CI80High
}

// Covers95 reports whether the realized value fell inside the 95% band.
func (p ForecastPoint) Covers95(actual float64) bool {
	return actual >= p.CI95Low && actual <= p.CI95High
}

// Width95 is the 95% band width, used by the empirical monotonicity check.
func (p ForecastPoint) Width95() float64 { return p.CI95High - p.CI95Low }

// Result is the combined multi-step forecast handed to reporting.
type Result struct {
	RunID       core.RunID            `json:"run_id"`
	Horizon     core.Horizon          `json:"horizon"`
	Family      core.VolatilityFamily `json:"volatility_family"`
	GeneratedAt core.Timestamp        `json:"generated_at"`
	Points      []ForecastPoint       `json:"points"`
	Weights     EnsembleWeights       `json:"weights"`
	ModelIDs    []core.ModelID        `json:"model_ids"`
	Excluded    []core.ModelID        `json:"excluded_model_ids,omitempty"`
}

// Means copies out the point means in step order.
func (r Result) Means() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Mean
	}
	return out
}
