package walkforward

import (
	"math"

	"github.com/montanaflynn/stats"

	"ratecast/domain/forecast"
	"ratecast/domain/validation"
)

// scoreFold measures one fold's forecast against the held-out actuals.
// lastTrain anchors the first step's direction comparison.
func scoreFold(points []forecast.ForecastPoint, actuals []float64, lastTrain float64) validation.FoldMetrics {
	n := float64(len(actuals))

	var sumSq, sumAbs, sumPct float64
	var pctTerms int
	var hits, covered80, covered95 int

	prev := lastTrain
	for i, actual := range actuals {
		point := points[i]
		err := actual - point.Mean

		sumSq += err * err
		sumAbs += math.Abs(err)
		if actual != 0 {
			sumPct += math.Abs(err / actual)
			pctTerms++
		}

		predMove := point.Mean - prev
		actualMove := actual - prev
		if predMove*actualMove > 0 || (predMove == 0 && actualMove == 0) {
			hits++
		}
		prev = actual

		if point.Covers80(actual) {
			covered80++
		}
		if point.Covers95(actual) {
			covered95++
		}
	}

	metrics := validation.FoldMetrics{
		RMSE:                math.Sqrt(sumSq / n),
		MAE:                 sumAbs / n,
		DirectionalAccuracy: float64(hits) / n,
		Coverage80:          float64(covered80) / n,
		Coverage95:          float64(covered95) / n,
	}
	if pctTerms > 0 {
		metrics.MAPE = 100 * sumPct / float64(pctTerms)
	}
	return metrics
}

// summarize aggregates metrics across succeeded folds: mean and sample
// standard deviation per metric. Failed folds contribute nothing.
func summarize(folds []validation.Fold) validation.Summary {
	var rmse, mae, mape, dir, cov80, cov95 []float64
	for _, f := range folds {
		if f.Metrics == nil {
			continue
		}
		rmse = append(rmse, f.Metrics.RMSE)
		mae = append(mae, f.Metrics.MAE)
		mape = append(mape, f.Metrics.MAPE)
		dir = append(dir, f.Metrics.DirectionalAccuracy)
		cov80 = append(cov80, f.Metrics.Coverage80)
		cov95 = append(cov95, f.Metrics.Coverage95)
	}

	return validation.Summary{
		Mean: validation.FoldMetrics{
			RMSE:                meanOrZero(rmse),
			MAE:                 meanOrZero(mae),
			MAPE:                meanOrZero(mape),
			DirectionalAccuracy: meanOrZero(dir),
			Coverage80:          meanOrZero(cov80),
			Coverage95:          meanOrZero(cov95),
		},
		Std: validation.FoldMetrics{
			RMSE:                stdOrZero(rmse),
			MAE:                 stdOrZero(mae),
			MAPE:                stdOrZero(mape),
			DirectionalAccuracy: stdOrZero(dir),
			Coverage80:          stdOrZero(cov80),
			Coverage95:          stdOrZero(cov95),
		},
	}
}

func meanOrZero(data []float64) float64 {
	m, err := stats.Mean(data)
	if err != nil {
		return 0
	}
	return m
}

func stdOrZero(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(data)
	if err != nil {
		return 0
	}
	return sd
}
