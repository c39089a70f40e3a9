// Package driftscore reduces a battery of two-window statistical tests
// to a single weighted 0-100 drift score with a severity label. Scoring
// is a pure function of the two windows; the same inputs always produce
// the same combined score.
package driftscore

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"ratecast/domain/core"
	"ratecast/domain/drift"
	"ratecast/internal/stattest"
)

const (
	// DefaultMinWindowSize is the per-window sample floor. It must not
	// be configured below what the weakest battery test supports.
	DefaultMinWindowSize = 30

	// Sub-score ramp anchors. A p-value at or above pCalm contributes
	// nothing; at or below pExtreme it contributes the full 100.
	pCalm    = 0.10
	pExtreme = 1e-4

	weightTolerance = 1e-9
)

// Default severity boundaries, expressed as the lowest combined score
// that earns each label.
const (
	DefaultModerateScore = 25.0
	DefaultHighScore     = 50.0
	DefaultCriticalScore = 75.0
)

// DefaultWeights returns the standard test weighting. Distribution
// shape carries the most weight, autocorrelation change the least.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"kolmogorov_smirnov": 0.40,
		"welch_t":            0.25,
		"levene":             0.20,
		"ljung_box":          0.15,
	}
}

// Config tunes the scorer. The zero value selects defaults everywhere.
type Config struct {
	// Weights maps battery test names to their share of the combined
	// score. Must cover every battery test and sum to 1.
	Weights       map[string]float64 `yaml:"weights"`
	MinWindowSize int                `yaml:"min_window_size" default:"30" validate:"gte=0"`
	// MaxLag bounds the Ljung-Box autocorrelation horizon.
	MaxLag int `yaml:"max_lag" default:"10" validate:"gte=0"`

	ModerateScore float64 `yaml:"moderate_score" default:"25" validate:"gte=0,lte=100"`
	HighScore     float64 `yaml:"high_score" default:"50" validate:"gte=0,lte=100"`
	CriticalScore float64 `yaml:"critical_score" default:"75" validate:"gte=0,lte=100"`
}

// Scorer runs the test battery over a baseline and a test window and
// folds the p-values into one drift score.
type Scorer struct {
	battery   []stattest.WindowTest
	weights   map[string]float64
	minWindow int
	moderate  float64
	high      float64
	critical  float64
	log       zerolog.Logger
}

// New validates the configuration and builds a scorer. Weight problems
// are construction-time failures, never call-time surprises.
func New(cfg Config, log zerolog.Logger) (*Scorer, error) {
	battery := stattest.Battery(cfg.MaxLag)

	weights := cfg.Weights
	if weights == nil {
		weights = DefaultWeights()
	}
	if err := checkWeights(weights, battery); err != nil {
		return nil, err
	}

	minWindow := cfg.MinWindowSize
	if minWindow == 0 {
		minWindow = DefaultMinWindowSize
	}
	for _, test := range battery {
		if minWindow < test.MinSamples() {
			return nil, core.NewConfigError("min_window_size",
				fmt.Sprintf("%d is below the %d samples %s requires", minWindow, test.MinSamples(), test.Name()))
		}
	}

	moderate, high, critical := cfg.ModerateScore, cfg.HighScore, cfg.CriticalScore
	if moderate == 0 && high == 0 && critical == 0 {
		moderate, high, critical = DefaultModerateScore, DefaultHighScore, DefaultCriticalScore
	}
	if !(moderate > 0 && moderate < high && high < critical && critical <= 100) {
		return nil, core.NewConfigError("severity thresholds",
			fmt.Sprintf("must satisfy 0 < moderate < high < critical <= 100, got %v/%v/%v", moderate, high, critical))
	}

	return &Scorer{
		battery:   battery,
		weights:   weights,
		minWindow: minWindow,
		moderate:  moderate,
		high:      high,
		critical:  critical,
		log:       log.With().Str("component", "drift_scorer").Logger(),
	}, nil
}

func checkWeights(weights map[string]float64, battery []stattest.WindowTest) error {
	known := make(map[string]bool, len(battery))
	var sum float64
	for _, test := range battery {
		w, ok := weights[test.Name()]
		if !ok {
			return core.NewConfigError("weights", "missing weight for test "+test.Name())
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return core.NewConfigError("weights", fmt.Sprintf("weight for %s must be finite and non-negative, got %v", test.Name(), w))
		}
		known[test.Name()] = true
		sum += w
	}
	for name := range weights {
		if !known[name] {
			return core.NewConfigError("weights", "unknown test "+name)
		}
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return core.NewConfigError("weights", fmt.Sprintf("must sum to 1.0, got %.12f", sum))
	}
	return nil
}

// Score compares the test window against the baseline and returns a
// fresh report. Non-finite observations are dropped with a warning
// before testing; windows that end up below the sample floor fail with
// an insufficient data error.
func (s *Scorer) Score(baseline, test []float64, horizon core.Horizon) (drift.Report, error) {
	if !horizon.Valid() {
		return drift.Report{}, core.NewConfigError("horizon", string(horizon))
	}

	cleanBase, droppedBase := sanitize(baseline)
	cleanTest, droppedTest := sanitize(test)
	dropped := droppedBase + droppedTest
	if dropped > 0 {
		s.log.Warn().
			Str("horizon", string(horizon)).
			Int("baseline_dropped", droppedBase).
			Int("test_dropped", droppedTest).
			Msg("dropped non-finite observations before drift scoring")
	}

	if len(cleanBase) < s.minWindow {
		return drift.Report{}, core.NewInsufficientDataError("drift baseline window", s.minWindow, len(cleanBase))
	}
	if len(cleanTest) < s.minWindow {
		return drift.Report{}, core.NewInsufficientDataError("drift test window", s.minWindow, len(cleanTest))
	}

	results := make([]drift.TestResult, 0, len(s.battery))
	var combined float64
	for _, t := range s.battery {
		r, err := t.Compare(cleanBase, cleanTest)
		if err != nil {
			return drift.Report{}, fmt.Errorf("drift test %s: %w", t.Name(), err)
		}
		weight := s.weights[t.Name()]
		sub := subScore(r.PValue)
		combined += weight * sub

		results = append(results, drift.TestResult{
			Name:      r.Name,
			Statistic: r.Statistic,
			PValue:    r.PValue,
			SubScore:  sub,
			Weight:    weight,
		})
		s.log.Debug().
			Str("test", r.Name).
			Float64("statistic", r.Statistic).
			Float64("p_value", r.PValue).
			Float64("sub_score", sub).
			Msg("drift test evaluated")
	}

	report := drift.Report{
		ReportID:         core.NewReportID(),
		Horizon:          horizon,
		EvaluatedAt:      core.Now(),
		Tests:            results,
		CombinedScore:    combined,
		Severity:         s.severityOf(combined),
		BaselineN:        len(cleanBase),
		TestN:            len(cleanTest),
		BaselineHash:     core.WindowHash(cleanBase),
		TestHash:         core.WindowHash(cleanTest),
		DroppedNonFinite: dropped,
	}

	s.log.Info().
		Str("horizon", string(horizon)).
		Float64("combined_score", combined).
		Str("severity", report.Severity.String()).
		Int("baseline_n", report.BaselineN).
		Int("test_n", report.TestN).
		Msg("drift scored")
	return report, nil
}

// MinWindowSize reports the effective per-window sample floor.
func (s *Scorer) MinWindowSize() int { return s.minWindow }

func (s *Scorer) severityOf(score float64) drift.Severity {
	switch {
	case score >= s.critical:
		return drift.SeverityCritical
	case score >= s.high:
		return drift.SeverityHigh
	case score >= s.moderate:
		return drift.SeverityModerate
	default:
		return drift.SeverityLow
	}
}

// subScore maps a p-value onto 0-100. The ramp is logarithmic in p:
// evidence against the null grows by orders of magnitude, not linearly.
func subScore(p float64) float64 {
	if p >= pCalm {
		return 0
	}
	if p <= pExtreme {
		return 100
	}
	return 100 * math.Log10(pCalm/p) / math.Log10(pCalm/pExtreme)
}

func sanitize(values []float64) (clean []float64, dropped int) {
	clean = make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			dropped++
			continue
		}
		clean = append(clean, v)
	}
	return clean, dropped
}
