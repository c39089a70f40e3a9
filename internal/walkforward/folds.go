package walkforward

import (
	"ratecast/domain/core"
	"ratecast/domain/validation"
)

// generateFolds lays out train/test ranges over a series of length n.
// Expanding mode keeps the train start at zero and grows the end by
// step per fold; rolling mode advances both ends, keeping train length
// constant. Ranges are half-open positions, so max(train) < min(test)
// holds by construction; checkFolds re-verifies it anyway because a
// leaked fold silently invalidates every downstream number.
func generateFolds(n int, cfg Config) []validation.Fold {
	var folds []validation.Fold

	for i := 0; ; i++ {
		trainFrom := 0
		trainTo := cfg.InitialTrain + i*cfg.Step
		if cfg.Mode == validation.ModeRolling {
			trainFrom = i * cfg.Step
			trainTo = trainFrom + cfg.InitialTrain
		}

		testFrom := trainTo
		testTo := testFrom + cfg.TestWindow
		if testTo > n {
			break
		}

		folds = append(folds, validation.Fold{
			Index:     i,
			TrainFrom: trainFrom,
			TrainTo:   trainTo,
			TestFrom:  testFrom,
			TestTo:    testTo,
		})
	}

	return folds
}

// checkFolds guards the no-leakage invariant on every generated fold.
func checkFolds(folds []validation.Fold, n int) error {
	for _, f := range folds {
		if f.TrainFrom < 0 || f.TrainTo <= f.TrainFrom {
			return core.NewConfigError("fold", "empty train range")
		}
		if f.TestFrom < f.TrainTo || f.TestTo <= f.TestFrom || f.TestTo > n {
			return core.NewConfigError("fold", "test range out of bounds")
		}
		if f.MaxTrainIndex() >= f.MinTestIndex() {
			return core.NewLeakageError(f.MaxTrainIndex(), f.MinTestIndex())
		}
	}
	return nil
}
