package walkforward

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
	"ratecast/domain/timeseries"
	"ratecast/domain/validation"
	"ratecast/internal/ensemble"
)

func TestFoldGeneration_Expanding(t *testing.T) {
	cfg := Config{Mode: validation.ModeExpanding, InitialTrain: 50, TestWindow: 10, Step: 10}
	folds := generateFolds(100, cfg)

	if len(folds) != 5 {
		t.Fatalf("Expected 5 folds, got %d", len(folds))
	}
	for i, f := range folds {
		if f.TrainFrom != 0 {
			t.Errorf("Fold %d: expanding train start must stay 0, got %d", i, f.TrainFrom)
		}
		if f.TrainTo != 50+i*10 {
			t.Errorf("Fold %d: train end = %d, want %d", i, f.TrainTo, 50+i*10)
		}
		if f.TestFrom != f.TrainTo || f.TestTo != f.TestFrom+10 {
			t.Errorf("Fold %d: test range [%d,%d) misplaced", i, f.TestFrom, f.TestTo)
		}
	}
}

func TestFoldGeneration_Rolling(t *testing.T) {
	cfg := Config{Mode: validation.ModeRolling, InitialTrain: 50, TestWindow: 10, Step: 10}
	folds := generateFolds(100, cfg)

	if len(folds) != 5 {
		t.Fatalf("Expected 5 folds, got %d", len(folds))
	}
	for i, f := range folds {
		if f.TrainLen() != 50 {
			t.Errorf("Fold %d: rolling train length must stay 50, got %d", i, f.TrainLen())
		}
		if f.TrainFrom != i*10 {
			t.Errorf("Fold %d: train start = %d, want %d", i, f.TrainFrom, i*10)
		}
	}
}

// TestNoLeakage_PropertySweep is the leakage property test: across
// randomized series lengths and fold parameters, every generated fold
// keeps all train positions strictly before all test positions.
func TestNoLeakage_PropertySweep(t *testing.T) {
	rng := newLCG(20240601)

	for iter := 0; iter < 500; iter++ {
		n := 30 + rng.intn(400)
		cfg := Config{
			Mode:         validation.ModeExpanding,
			InitialTrain: 5 + rng.intn(50),
			TestWindow:   1 + rng.intn(20),
			Step:         1 + rng.intn(15),
		}
		if rng.intn(2) == 1 {
			cfg.Mode = validation.ModeRolling
		}

		folds := generateFolds(n, cfg)
		if err := checkFolds(folds, n); err != nil {
			t.Fatalf("iter %d (n=%d cfg=%+v): %v", iter, n, cfg, err)
		}
		for _, f := range folds {
			if f.MaxTrainIndex() >= f.MinTestIndex() {
				t.Fatalf("iter %d: leakage in fold %d: maxTrain=%d minTest=%d",
					iter, f.Index, f.MaxTrainIndex(), f.MinTestIndex())
			}
			if f.TestTo > n {
				t.Fatalf("iter %d: fold %d reads past series end", iter, f.Index)
			}
		}
	}
}

func TestValidator_RecordsFailedFoldsAndContinues(t *testing.T) {
	v := mustValidator(t, Config{
		Mode: validation.ModeRolling, InitialTrain: 20, TestWindow: 5, Step: 5,
	})
	series := flatSeries(t, 60, 100)

	calls := 0
	forecaster := func(train timeseries.Series, steps int) (forecast.Result, error) {
		calls++
		if calls == 2 {
			return forecast.Result{}, errors.New("model service unreachable")
		}
		if calls == 3 {
			panic("index out of range in feature builder")
		}
		return constantForecast(train, steps, 100, 1), nil
	}

	report, err := v.Run(context.Background(), series, core.HorizonDaily, forecaster)
	if err != nil {
		t.Fatalf("Run must not fail on per-fold errors: %v", err)
	}

	if len(report.Folds) != 8 {
		t.Fatalf("Expected 8 folds over 60 observations, got %d", len(report.Folds))
	}
	if report.FailedFolds != 2 {
		t.Errorf("Expected 2 failed folds, got %d", report.FailedFolds)
	}
	if !report.Folds[1].Failed() || report.Folds[1].Metrics != nil {
		t.Error("Fold 1 should carry its error and no metrics")
	}
	if report.Folds[2].Error == "" || !strings.Contains(report.Folds[2].Error, "panic") {
		t.Errorf("Fold 2 should record the panic, got %q", report.Folds[2].Error)
	}
	if report.SucceededFolds() != 6 {
		t.Errorf("Expected 6 succeeded folds, got %d", report.SucceededFolds())
	}
	if report.Summary.Mean.RMSE != 0 {
		t.Errorf("Perfect constant forecaster should have zero RMSE, got %f", report.Summary.Mean.RMSE)
	}
}

func TestValidator_ClampsSeriesAndFolds(t *testing.T) {
	v := mustValidator(t, Config{
		Mode: validation.ModeRolling, InitialTrain: 10, TestWindow: 2, Step: 2,
		MaxFolds: 4, MaxSeriesLen: 50,
	})
	series := flatSeries(t, 200, 100)

	report, err := v.Run(context.Background(), series, core.HorizonDaily, perfectForecaster(100))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.SeriesLen != 50 {
		t.Errorf("Series should clamp to 50 observations, got %d", report.SeriesLen)
	}
	if len(report.Folds) != 4 {
		t.Errorf("Folds should clamp to 4, got %d", len(report.Folds))
	}
	if report.RequestedFolds <= 4 {
		t.Errorf("Requested folds should exceed the clamp, got %d", report.RequestedFolds)
	}
}

func TestValidator_InsufficientSeries(t *testing.T) {
	v := mustValidator(t, Config{
		Mode: validation.ModeExpanding, InitialTrain: 50, TestWindow: 10, Step: 5,
	})
	series := flatSeries(t, 40, 100)

	_, err := v.Run(context.Background(), series, core.HorizonDaily, perfectForecaster(100))
	if !core.IsInsufficientData(err) {
		t.Fatalf("Expected insufficient data error, got %v", err)
	}
}

func TestValidator_ConfigRejected(t *testing.T) {
	bad := []Config{
		{Mode: "sliding", InitialTrain: 10, TestWindow: 5, Step: 5},
		{Mode: validation.ModeRolling, InitialTrain: 0, TestWindow: 5, Step: 5},
		{Mode: validation.ModeRolling, InitialTrain: 10, TestWindow: 0, Step: 5},
		{Mode: validation.ModeRolling, InitialTrain: 10, TestWindow: 5, Step: 0},
		{Mode: validation.ModeRolling, InitialTrain: 10, TestWindow: 5, Step: 5, MaxFolds: -1},
	}
	for i, cfg := range bad {
		if _, err := New(cfg, zerolog.Nop()); !core.IsConfigError(err) {
			t.Errorf("Config %d should be rejected, got %v", i, err)
		}
	}
}

func TestValidator_ParallelMatchesSequential(t *testing.T) {
	series := noisySeries(t, 300, 900, 5, 77)

	run := func(parallelism int) validation.Report {
		v := mustValidator(t, Config{
			Mode: validation.ModeRolling, InitialTrain: 60, TestWindow: 10, Step: 10,
			Parallelism: parallelism,
		})
		report, err := v.Run(context.Background(), series, core.HorizonDaily, meanForecaster(t, 30))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		return report
	}

	seq := run(1)
	par := run(4)

	if len(seq.Folds) != len(par.Folds) {
		t.Fatalf("Fold counts differ: %d vs %d", len(seq.Folds), len(par.Folds))
	}
	for i := range seq.Folds {
		sm, pm := seq.Folds[i].Metrics, par.Folds[i].Metrics
		if (sm == nil) != (pm == nil) {
			t.Fatalf("Fold %d: success mismatch between sequential and parallel", i)
		}
		if sm != nil && math.Abs(sm.RMSE-pm.RMSE) > 1e-12 {
			t.Errorf("Fold %d: RMSE differs: %f vs %f", i, sm.RMSE, pm.RMSE)
		}
	}
}

// TestCalibration_EmpiricalCoverage is the calibrator acceptance test:
// against a synthetic process with known noise, empirical 95% coverage
// over many walk-forward folds must land inside the tolerance band.
func TestCalibration_EmpiricalCoverage(t *testing.T) {
	series := noisySeries(t, 2000, 900, 5, 42)

	v := mustValidator(t, Config{
		Mode: validation.ModeRolling, InitialTrain: 120, TestWindow: 10, Step: 10,
		MaxFolds: 200,
	})

	report, err := v.Run(context.Background(), series, core.HorizonDaily, meanForecaster(t, 30))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.FailedFolds != 0 {
		t.Fatalf("Acceptance run must not drop folds, %d failed", report.FailedFolds)
	}
	if report.SucceededFolds() < 100 {
		t.Fatalf("Need many folds for a stable coverage estimate, got %d", report.SucceededFolds())
	}

	cov95 := report.Summary.Mean.Coverage95
	if cov95 < 0.90 || cov95 > 0.97 {
		t.Errorf("Empirical CI95 coverage %.4f outside tolerance band [0.90, 0.97]", cov95)
	}

	cov80 := report.Summary.Mean.Coverage80
	if cov80 < 0.70 || cov80 > 0.90 {
		t.Errorf("Empirical CI80 coverage %.4f outside sanity band [0.70, 0.90]", cov80)
	}
	t.Logf("coverage80=%.4f coverage95=%.4f rmse=%.3f folds=%d",
		cov80, cov95, report.Summary.Mean.RMSE, report.SucceededFolds())
}

func TestScoreFold_HandComputed(t *testing.T) {
	points := []forecast.ForecastPoint{
		{Mean: 10, CI80Low: 9, CI80High: 11, CI95Low: 8, CI95High: 12},
		{Mean: 12, CI80Low: 11, CI80High: 13, CI95Low: 10, CI95High: 14},
	}
	actuals := []float64{11, 9}

	m := scoreFold(points, actuals, 10)

	if math.Abs(m.RMSE-math.Sqrt(5)) > 1e-12 {
		t.Errorf("RMSE = %f, want sqrt(5)", m.RMSE)
	}
	if math.Abs(m.MAE-2) > 1e-12 {
		t.Errorf("MAE = %f, want 2", m.MAE)
	}
	wantMAPE := 100 * (1.0/11 + 3.0/9) / 2
	if math.Abs(m.MAPE-wantMAPE) > 1e-9 {
		t.Errorf("MAPE = %f, want %f", m.MAPE, wantMAPE)
	}
	// Step 0: predicted no move, actual moved up. Step 1: predicted up
	// from 11, actual fell. Both misses.
	if m.DirectionalAccuracy != 0 {
		t.Errorf("DirectionalAccuracy = %f, want 0", m.DirectionalAccuracy)
	}
	// 11 inside both bands of point 0; 9 outside point 1's 80 band but
	// not its 95 band... 9 < CI95Low=10, outside both.
	if m.Coverage80 != 0.5 || m.Coverage95 != 0.5 {
		t.Errorf("Coverage80/95 = %f/%f, want 0.5/0.5", m.Coverage80, m.Coverage95)
	}
}

// Helpers

func mustValidator(t *testing.T, cfg Config) *Validator {
	t.Helper()
	v, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func flatSeries(t *testing.T, n int, level float64) timeseries.Series {
	t.Helper()
	values := make([]float64, n)
	for i := range values {
		values[i] = level
	}
	s, err := timeseries.FromValues(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 24*time.Hour, values)
	if err != nil {
		t.Fatalf("FromValues: %v", err)
	}
	return s
}

func noisySeries(t *testing.T, n int, mean, std float64, seed float64) timeseries.Series {
	t.Helper()
	noise := newNoise(seed)
	values := make([]float64, n)
	for i := range values {
		values[i] = mean + noise.norm()*std
	}
	s, err := timeseries.FromValues(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 24*time.Hour, values)
	if err != nil {
		t.Fatalf("FromValues: %v", err)
	}
	return s
}

// perfectForecaster predicts the constant level with a tight band.
func perfectForecaster(level float64) ForecasterFunc {
	return func(train timeseries.Series, steps int) (forecast.Result, error) {
		return constantForecast(train, steps, level, 1), nil
	}
}

func constantForecast(train timeseries.Series, steps int, level, dispersion float64) forecast.Result {
	points := make([]forecast.ForecastPoint, steps)
	for i := range points {
		points[i] = forecast.ForecastPoint{
			Date:     core.NewTimestamp(train.Last().Time.Time().Add(time.Duration(i+1) * 24 * time.Hour)),
			Mean:     level,
			CI80Low:  level - 1.31*dispersion,
			CI80High: level + 1.31*dispersion,
			CI95Low:  level - 2.04*dispersion,
			CI95High: level + 2.04*dispersion,
		}
	}
	return forecast.Result{Points: points}
}

// meanForecaster estimates level and dispersion from the last window
// observations of the train slice and builds the interval for every
// step with the real calibrator, the same path live forecasts take.
func meanForecaster(t *testing.T, window int) ForecasterFunc {
	t.Helper()
	calibrator, err := ensemble.NewCalibrator(ensemble.CalibratorConfig{DegreesOfFreedom: 30})
	if err != nil {
		t.Fatalf("NewCalibrator: %v", err)
	}

	return func(train timeseries.Series, steps int) (forecast.Result, error) {
		tail := train.Tail(window).Values()

		var sum float64
		for _, v := range tail {
			sum += v
		}
		mean := sum / float64(len(tail))

		var sumSq float64
		for _, v := range tail {
			sumSq += (v - mean) * (v - mean)
		}
		std := math.Sqrt(sumSq / float64(len(tail)-1))

		anchor := train.Last().Time.Time()
		points := make([]forecast.ForecastPoint, steps)
		for i := range points {
			date := core.NewTimestamp(anchor.Add(time.Duration(i+1) * 24 * time.Hour))
			p, err := calibrator.Point(date, mean, std)
			if err != nil {
				return forecast.Result{}, err
			}
			points[i] = p
		}
		return forecast.Result{Points: points}, nil
	}
}

// Deterministic generators, seeded per test.

type lcg struct{ state uint64 }

func newLCG(seed uint64) *lcg { return &lcg{state: seed} }

func (l *lcg) next() uint64 {
	l.state = l.state*6364136223846793005 + 1442695040888963407
	return l.state
}

func (l *lcg) intn(n int) int {
	return int(l.next() % uint64(n))
}

type noise struct{ state float64 }

func newNoise(seed float64) *noise { return &noise{state: seed} }

func (s *noise) norm() float64 {
	s.state = math.Mod(s.state*1103515245+12345, 2147483648)
	u1 := s.state / 2147483648.0
	s.state = math.Mod(s.state*1103515245+12345, 2147483648)
	u2 := s.state / 2147483648.0
	if u1 < 1e-12 {
		u1 = 1e-12
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
