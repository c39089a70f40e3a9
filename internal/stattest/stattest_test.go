package stattest

import (
	"math"
	"testing"

	"ratecast/domain/core"
)

func TestBattery_NamesAndOrder(t *testing.T) {
	battery := Battery(10)
	if len(battery) != 4 {
		t.Fatalf("Expected 4 tests in battery, got %d", len(battery))
	}

	expected := []string{"kolmogorov_smirnov", "welch_t", "levene", "ljung_box"}
	for i, test := range battery {
		if test.Name() != expected[i] {
			t.Errorf("Battery position %d: expected %s, got %s", i, expected[i], test.Name())
		}
		if test.Description() == "" {
			t.Errorf("Test %s has empty description", test.Name())
		}
		if test.MinSamples() < 2 {
			t.Errorf("Test %s has nonsensical sample floor %d", test.Name(), test.MinSamples())
		}
	}
}

func TestKolmogorovSmirnov_SeparatedDistributions(t *testing.T) {
	noise := newNoiseSource(42)
	baseline := noise.normalSeries(90, 900, 5)
	test := noise.normalSeries(30, 950, 5)

	result, err := NewKolmogorovSmirnov().Compare(baseline, test)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Ten sigmas of separation: ECDFs should barely overlap.
	if result.Statistic < 0.9 {
		t.Errorf("Expected D near 1 for separated windows, got %f", result.Statistic)
	}
	if result.PValue > 1e-6 {
		t.Errorf("Expected vanishing p-value, got %g", result.PValue)
	}
	t.Logf("KS separated: D=%.4f p=%g", result.Statistic, result.PValue)
}

func TestKolmogorovSmirnov_IdenticalWindows(t *testing.T) {
	noise := newNoiseSource(7)
	window := noise.normalSeries(60, 900, 5)

	result, err := NewKolmogorovSmirnov().Compare(window, window)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Statistic != 0 {
		t.Errorf("Expected D=0 for identical windows, got %f", result.Statistic)
	}
	if result.PValue != 1.0 {
		t.Errorf("Expected p=1 for identical windows, got %f", result.PValue)
	}
}

func TestKolmogorovSmirnov_SameDistribution(t *testing.T) {
	noise := newNoiseSource(1234)
	baseline := noise.normalSeries(120, 900, 5)
	test := noise.normalSeries(120, 900, 5)

	result, err := NewKolmogorovSmirnov().Compare(baseline, test)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.PValue < 1e-3 {
		t.Errorf("Same-distribution windows should not look like certain drift, p=%g", result.PValue)
	}
}

func TestWelchT_MeanShift(t *testing.T) {
	noise := newNoiseSource(42)
	baseline := noise.normalSeries(90, 900, 5)
	test := noise.normalSeries(30, 950, 5)

	result, err := NewWelchT().Compare(baseline, test)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Statistic < 20 {
		t.Errorf("Expected huge t statistic for a 10-sigma shift, got %f", result.Statistic)
	}
	if result.PValue > 1e-10 {
		t.Errorf("Expected vanishing p-value, got %g", result.PValue)
	}
}

func TestWelchT_ConstantWindows(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 900
	}
	shifted := make([]float64, 20)
	for i := range shifted {
		shifted[i] = 950
	}

	same, err := NewWelchT().Compare(flat, flat)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if same.PValue != 1.0 {
		t.Errorf("Identical constant windows: expected p=1, got %f", same.PValue)
	}

	diff, err := NewWelchT().Compare(flat, shifted)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff.PValue != 0.0 {
		t.Errorf("Different constant windows: expected p=0, got %f", diff.PValue)
	}
}

func TestLevene_VarianceShift(t *testing.T) {
	noise := newNoiseSource(99)
	baseline := noise.normalSeries(90, 900, 2)
	test := noise.normalSeries(60, 900, 12)

	result, err := NewLevene().Compare(baseline, test)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.PValue > 1e-4 {
		t.Errorf("Sixfold dispersion jump should be obvious, p=%g", result.PValue)
	}
	t.Logf("Levene: W=%.2f p=%g", result.Statistic, result.PValue)
}

func TestLevene_EqualVariance(t *testing.T) {
	noise := newNoiseSource(5)
	baseline := noise.normalSeries(120, 900, 5)
	test := noise.normalSeries(120, 950, 5)

	// Mean shift with equal spread: Levene must stay quiet, that is
	// the Welch test's job.
	result, err := NewLevene().Compare(baseline, test)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.PValue < 1e-3 {
		t.Errorf("Equal-variance windows should not trip Levene, p=%g", result.PValue)
	}
}

func TestLjungBox_LevelShiftAcrossBoundary(t *testing.T) {
	noise := newNoiseSource(42)
	baseline := noise.normalSeries(90, 900, 5)
	test := noise.normalSeries(30, 950, 5)

	result, err := NewLjungBox(10).Compare(baseline, test)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// The level shift makes the concatenated sequence strongly
	// autocorrelated at low lags.
	if result.PValue > 1e-6 {
		t.Errorf("Expected vanishing p-value for level shift, got %g", result.PValue)
	}
	if result.Statistic <= 0 {
		t.Errorf("Expected positive Q, got %f", result.Statistic)
	}
}

func TestLjungBox_StableProcess(t *testing.T) {
	noise := newNoiseSource(8)
	baseline := noise.normalSeries(90, 900, 5)
	test := noise.normalSeries(90, 900, 5)

	result, err := NewLjungBox(10).Compare(baseline, test)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.PValue < 1e-3 {
		t.Errorf("White noise across the boundary should not fire, p=%g", result.PValue)
	}
}

func TestWindowFloors(t *testing.T) {
	short := []float64{1, 2, 3}
	long := make([]float64, 100)
	for i := range long {
		long[i] = float64(i)
	}

	for _, test := range Battery(10) {
		if _, err := test.Compare(short, long); !core.IsInsufficientData(err) {
			t.Errorf("%s: expected insufficient data error for short baseline, got %v", test.Name(), err)
		}
		if _, err := test.Compare(long, short); !core.IsInsufficientData(err) {
			t.Errorf("%s: expected insufficient data error for short test window, got %v", test.Name(), err)
		}
	}
}

func TestAutocorrelation_KnownSignal(t *testing.T) {
	// Alternating series has lag-1 autocorrelation near -1.
	data := make([]float64, 100)
	for i := range data {
		if i%2 == 0 {
			data[i] = 1
		} else {
			data[i] = -1
		}
	}
	r := autocorrelation(data, 1)
	if r > -0.9 {
		t.Errorf("Expected strong negative lag-1 autocorrelation, got %f", r)
	}

	r2 := autocorrelation(data, 2)
	if r2 < 0.9 {
		t.Errorf("Expected strong positive lag-2 autocorrelation, got %f", r2)
	}
}

// noiseSource is a deterministic normal generator (LCG + Box-Muller) so
// tests never depend on package ordering or the global rand state.
type noiseSource struct {
	state float64
}

func newNoiseSource(seed float64) *noiseSource {
	return &noiseSource{state: seed}
}

func (s *noiseSource) norm() float64 {
	s.state = math.Mod(s.state*1103515245+12345, 2147483648)
	u1 := s.state / 2147483648.0
	s.state = math.Mod(s.state*1103515245+12345, 2147483648)
	u2 := s.state / 2147483648.0

	if u1 < 1e-12 {
		u1 = 1e-12
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

func (s *noiseSource) normalSeries(n int, mean, std float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + s.norm()*std
	}
	return out
}
