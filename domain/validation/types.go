package validation

import (
	"ratecast/domain/core"
)

// Mode selects how train windows advance between folds.
type Mode string

const (
	// ModeExpanding keeps the train start fixed and grows the train end.
	ModeExpanding Mode = "expanding"
	// ModeRolling advances both train start and end, keeping length fixed.
	ModeRolling Mode = "rolling"
)

// ParseMode parses a fold-generation mode label.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeExpanding, ModeRolling:
		return Mode(s), nil
	default:
		return "", core.NewConfigError("mode", "must be \"expanding\" or \"rolling\"")
	}
}

// FoldMetrics are the per-fold accuracy and coverage measurements.
// Coverage values are empirical fractions in [0,1].
type FoldMetrics struct {
	RMSE                float64 `json:"rmse"`
	MAE                 float64 `json:"mae"`
	MAPE                float64 `json:"mape"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
	Coverage80          float64 `json:"coverage_80"`
	Coverage95          float64 `json:"coverage_95"`
}

// Fold is one walk-forward iteration. Index ranges are half-open
// [From, To) positions into the validated series.
// INVARIANT: TrainTo <= TestFrom, so max(train) < min(test) always holds.
type Fold struct {
	Index     int          `json:"index"`
	TrainFrom int          `json:"train_from"`
	TrainTo   int          `json:"train_to"`
	TestFrom  int          `json:"test_from"`
	TestTo    int          `json:"test_to"`
	Metrics   *FoldMetrics `json:"metrics,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// MaxTrainIndex is the largest series position visible to training.
func (f Fold) MaxTrainIndex() int { return f.TrainTo - 1 }

// MinTestIndex is the smallest series position the fold evaluates on.
func (f Fold) MinTestIndex() int { return f.TestFrom }

// Failed reports whether the fold's forecaster invocation failed.
// A failed fold stays in the report with its error string; it never
// aborts the run.
func (f Fold) Failed() bool { return f.Error != "" }

// TrainLen returns the number of training observations.
func (f Fold) TrainLen() int { return f.TrainTo - f.TrainFrom }

// TestLen returns the number of held-out observations.
func (f Fold) TestLen() int { return f.TestTo - f.TestFrom }

// Summary aggregates fold metrics across a run: mean and standard
// deviation per metric, computed over succeeded folds only.
type Summary struct {
	Mean FoldMetrics `json:"mean"`
	Std  FoldMetrics `json:"std"`
}

// Report is the outcome of one walk-forward validation run.
type Report struct {
	RunID          core.RunID     `json:"run_id"`
	Horizon        core.Horizon   `json:"horizon"`
	Mode           Mode           `json:"mode"`
	GeneratedAt    core.Timestamp `json:"generated_at"`
	SeriesLen      int            `json:"series_len"`
	RequestedFolds int            `json:"requested_folds"`
	Folds          []Fold         `json:"folds"`
	Summary        Summary        `json:"summary"`
	FailedFolds    int            `json:"failed_folds"`
}

// SucceededFolds counts folds that produced metrics.
func (r Report) SucceededFolds() int {
	return len(r.Folds) - r.FailedFolds
}
