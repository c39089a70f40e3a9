// Package trend classifies the direction of drift from a history of
// past drift reports. A trend claim requires a confident regression
// fit; everything else is stable or unknown, never a guess.
package trend

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"ratecast/domain/core"
	"ratecast/domain/drift"
)

const (
	// DefaultLookback is how many of the most recent reports feed the
	// regression.
	DefaultLookback = 30

	// DefaultRSquaredThreshold is the weakest fit that still supports
	// a trend claim.
	DefaultRSquaredThreshold = 0.30

	// DefaultCalmScore is the combined score below which a flat fit
	// reads as stable rather than ambiguous.
	DefaultCalmScore = 25.0

	// MinObservations is the smallest history a regression runs on.
	// Below it the trend is unknown by construction.
	MinObservations = 3
)

// Config tunes the analyzer. The zero value selects defaults.
type Config struct {
	Lookback          int     `yaml:"lookback" default:"30" validate:"gte=0"`
	RSquaredThreshold float64 `yaml:"r_squared_threshold" default:"0.3" validate:"gte=0,lte=1"`
	CalmScore         float64 `yaml:"calm_score" default:"25" validate:"gte=0,lte=100"`
}

// Analyzer fits combined drift scores against time and labels the
// regime. It never triggers anything itself; RequiresAction on the
// report is the only signal downstream automation consumes.
type Analyzer struct {
	lookback  int
	rsqFloor  float64
	calmScore float64
	log       zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) (*Analyzer, error) {
	lookback := cfg.Lookback
	if lookback == 0 {
		lookback = DefaultLookback
	}
	if lookback < MinObservations {
		return nil, core.NewConfigError("lookback", "must cover at least three reports")
	}

	rsqFloor := cfg.RSquaredThreshold
	if rsqFloor == 0 {
		rsqFloor = DefaultRSquaredThreshold
	}
	if rsqFloor < 0 || rsqFloor > 1 || math.IsNaN(rsqFloor) {
		return nil, core.NewConfigError("r_squared_threshold", "must be within [0, 1]")
	}

	calmScore := cfg.CalmScore
	if calmScore == 0 {
		calmScore = DefaultCalmScore
	}
	if calmScore < 0 || calmScore > 100 || math.IsNaN(calmScore) {
		return nil, core.NewConfigError("calm_score", "must be within [0, 100]")
	}

	return &Analyzer{
		lookback:  lookback,
		rsqFloor:  rsqFloor,
		calmScore: calmScore,
		log:       log.With().Str("component", "trend_analyzer").Logger(),
	}, nil
}

// Analyze derives a trend report from drift history, oldest first.
// Short history is an expected steady state early in a deployment, so
// fewer than three usable reports returns a well-formed UNKNOWN report
// rather than an error.
func (a *Analyzer) Analyze(history []drift.Report) drift.TrendReport {
	clean := make([]drift.Report, 0, len(history))
	for _, r := range history {
		if math.IsNaN(r.CombinedScore) || math.IsInf(r.CombinedScore, 0) {
			a.log.Warn().Str("report_id", string(r.ReportID)).Msg("skipping report with non-finite score")
			continue
		}
		clean = append(clean, r)
	}

	report := drift.TrendReport{
		Trend:                drift.TrendUnknown,
		ConsecutiveHighCount: consecutiveHigh(clean),
	}
	if len(clean) > 0 {
		report.LatestScore = clean[len(clean)-1].CombinedScore
	}

	window := clean
	if len(window) > a.lookback {
		window = window[len(window)-a.lookback:]
	}
	report.Observations = len(window)

	if len(window) < MinObservations {
		return report
	}

	x := make([]float64, len(window))
	y := make([]float64, len(window))
	origin := window[0].EvaluatedAt.Time()
	for i, r := range window {
		x[i] = r.EvaluatedAt.Time().Sub(origin).Hours() / 24
		y[i] = r.CombinedScore
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	rsq := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(beta) || math.IsInf(beta, 0) || math.IsNaN(rsq) {
		// Degenerate fit: identical timestamps or a constant score.
		beta, rsq = 0, 0
	}
	report.Slope = beta
	report.RSquared = rsq

	switch {
	case rsq >= a.rsqFloor && beta > 0:
		report.Trend = drift.TrendWorsening
	case rsq >= a.rsqFloor && beta < 0:
		report.Trend = drift.TrendImproving
	case report.LatestScore < a.calmScore:
		report.Trend = drift.TrendStable
	default:
		// Elevated score with no confident trend.
		report.Trend = drift.TrendUnknown
	}

	a.log.Info().
		Str("trend", string(report.Trend)).
		Float64("slope_per_day", report.Slope).
		Float64("r_squared", report.RSquared).
		Int("consecutive_high", report.ConsecutiveHighCount).
		Float64("latest_score", report.LatestScore).
		Bool("requires_action", report.RequiresAction()).
		Msg("drift trend analyzed")
	return report
}

// consecutiveHigh counts HIGH or CRITICAL severities backward from the
// most recent report, stopping at the first calmer entry.
func consecutiveHigh(history []drift.Report) int {
	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].Severity.AtLeast(drift.SeverityHigh) {
			break
		}
		count++
	}
	return count
}
