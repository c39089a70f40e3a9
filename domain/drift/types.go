package drift

import (
	"ratecast/domain/core"
)

// Severity buckets a combined drift score. Thresholds are configurable
// on the scorer; the zero value is SeverityLow.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityModerate Severity = "MODERATE"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityModerate: 1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

func (s Severity) String() string { return string(s) }

// TestResult is one statistical test's contribution to a drift score.
type TestResult struct {
	Name      string  `json:"name"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	SubScore  float64 `json:"sub_score"` // 0-100, higher means more drift
	Weight    float64 `json:"weight"`
}

// Report is one drift evaluation. Appended to the history store, never
// mutated after creation.
type Report struct {
	ReportID      core.ReportID  `json:"report_id"`
	Horizon       core.Horizon   `json:"horizon"`
	EvaluatedAt   core.Timestamp `json:"evaluated_at"`
	Tests         []TestResult   `json:"tests"`
	CombinedScore float64        `json:"combined_score"` // 0-100
	Severity      Severity       `json:"severity"`
	BaselineN     int            `json:"baseline_n"`
	TestN         int            `json:"test_n"`
	// Window fingerprints state exactly which observations were scored.
	BaselineHash core.Hash `json:"baseline_hash"`
	TestHash     core.Hash `json:"test_hash"`
	// DroppedNonFinite counts observations removed before testing.
	DroppedNonFinite int `json:"dropped_non_finite,omitempty"`
}

// Trend classifies the direction of drift over a lookback window.
type Trend string

const (
	TrendStable    Trend = "STABLE"
	TrendImproving Trend = "IMPROVING"
	TrendWorsening Trend = "WORSENING"
	TrendUnknown   Trend = "UNKNOWN"
)

// ActionScoreThreshold is the combined score at which a single latest
// report alone demands action.
const ActionScoreThreshold = 75.0

// TrendReport is derived on demand from a window of past drift reports.
// Not persisted: recomputable from history.
type TrendReport struct {
	Trend                Trend   `json:"trend"`
	Slope                float64 `json:"slope"`
	RSquared             float64 `json:"r_squared"`
	ConsecutiveHighCount int     `json:"consecutive_high_count"`
	LatestScore          float64 `json:"latest_score"`
	Observations         int     `json:"observations"`
}

// RequiresAction is the single boolean retraining automation consumes.
// True when the trend is worsening, severity has been HIGH or worse for
// three consecutive evaluations, or the latest score alone is critical.
// Pure function of the report; the analyzer never triggers anything.
func (r TrendReport) RequiresAction() bool {
	return r.Trend == TrendWorsening ||
		r.ConsecutiveHighCount >= 3 ||
		r.LatestScore >= ActionScoreThreshold
}
