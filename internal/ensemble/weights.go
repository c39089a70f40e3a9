package ensemble

import (
	"ratecast/domain/core"
	"ratecast/domain/forecast"
)

// errorFloor keeps inverse-error weighting defined for perfect in-sample
// fits.
const errorFloor = 1e-6

// ComputeWeights derives inverse-error ensemble weights from one cycle's
// model results: weight_i = (1/error_i) / sum(1/error_j), with errors
// floored at errorFloor. A pure function of its input: weights are
// recomputed and discarded every cycle, never kept as state anywhere.
func ComputeWeights(results []forecast.ModelResult) (forecast.EnsembleWeights, error) {
	if len(results) == 0 {
		return nil, core.NewInsufficientModelsError(0, 0)
	}

	inverse := make(map[string]float64, len(results))
	var sum float64
	for _, r := range results {
		err := r.InSampleError
		if err < errorFloor {
			err = errorFloor
		}
		inv := 1.0 / err
		inverse[r.ModelID.String()] = inv
		sum += inv
	}

	weights := make(forecast.EnsembleWeights, len(results))
	for _, r := range results {
		weights[r.ModelID] = inverse[r.ModelID.String()] / sum
	}

	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return weights, nil
}
