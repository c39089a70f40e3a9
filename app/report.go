package app

import (
	"fmt"
	"strings"

	"ratecast/domain/core"
	"ratecast/domain/drift"
	"ratecast/domain/validation"
)

// recentDriftRows bounds the drift table so the report stays readable
// after months of scheduled evaluations.
const recentDriftRows = 10

// StatusMarkdown renders the monitoring state for one horizon as a
// markdown document. Pure formatting: history slices come in oldest
// first, exactly as the stores return them.
func StatusMarkdown(horizon core.Horizon, driftHistory []drift.Report, trendReport drift.TrendReport, valHistory []validation.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Forecast monitor: %s horizon\n\n", horizon)

	writeDriftSection(&b, driftHistory)
	writeTrendSection(&b, trendReport)
	writeValidationSection(&b, valHistory)

	return b.String()
}

func writeDriftSection(b *strings.Builder, history []drift.Report) {
	b.WriteString("## Drift\n\n")
	if len(history) == 0 {
		b.WriteString("No drift evaluations recorded yet.\n\n")
		return
	}

	latest := history[len(history)-1]
	fmt.Fprintf(b, "Latest evaluation %s: combined score **%.1f** (%s) over %d baseline / %d test observations.\n\n",
		latest.EvaluatedAt.Time().Format("2006-01-02 15:04 UTC"),
		latest.CombinedScore, latest.Severity, latest.BaselineN, latest.TestN)

	if latest.DroppedNonFinite > 0 {
		fmt.Fprintf(b, "%d non-finite observations were dropped before testing.\n\n", latest.DroppedNonFinite)
	}

	b.WriteString("| Test | Statistic | p-value | Sub-score | Weight |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, t := range latest.Tests {
		fmt.Fprintf(b, "| %s | %.4f | %.4g | %.1f | %.2f |\n",
			t.Name, t.Statistic, t.PValue, t.SubScore, t.Weight)
	}
	b.WriteString("\n")

	start := len(history) - recentDriftRows
	if start < 0 {
		start = 0
	}
	b.WriteString("| Evaluated | Score | Severity |\n")
	b.WriteString("|---|---|---|\n")
	for i := len(history) - 1; i >= start; i-- {
		r := history[i]
		fmt.Fprintf(b, "| %s | %.1f | %s |\n",
			r.EvaluatedAt.Time().Format("2006-01-02"), r.CombinedScore, r.Severity)
	}
	b.WriteString("\n")
}

func writeTrendSection(b *strings.Builder, report drift.TrendReport) {
	b.WriteString("## Trend\n\n")
	fmt.Fprintf(b, "State: **%s** over %d evaluations", report.Trend, report.Observations)
	if report.Trend == drift.TrendWorsening || report.Trend == drift.TrendImproving {
		fmt.Fprintf(b, " (slope %+.2f points/day, R² %.2f)", report.Slope, report.RSquared)
	}
	b.WriteString(".\n\n")

	fmt.Fprintf(b, "- Latest score: %.1f\n", report.LatestScore)
	fmt.Fprintf(b, "- Consecutive HIGH-or-worse evaluations: %d\n", report.ConsecutiveHighCount)
	if report.RequiresAction() {
		b.WriteString("- **Action required: model retraining review**\n")
	} else {
		b.WriteString("- No action required\n")
	}
	b.WriteString("\n")
}

func writeValidationSection(b *strings.Builder, history []validation.Report) {
	b.WriteString("## Walk-forward validation\n\n")
	if len(history) == 0 {
		b.WriteString("No validation runs recorded yet.\n")
		return
	}

	latest := history[len(history)-1]
	fmt.Fprintf(b, "Latest run %s (%s mode): %d folds, %d failed, series length %d.\n\n",
		latest.GeneratedAt.Time().Format("2006-01-02 15:04 UTC"),
		latest.Mode, len(latest.Folds), latest.FailedFolds, latest.SeriesLen)

	b.WriteString("| Metric | Mean | Std |\n")
	b.WriteString("|---|---|---|\n")
	rows := []struct {
		name      string
		mean, std float64
	}{
		{"RMSE", latest.Summary.Mean.RMSE, latest.Summary.Std.RMSE},
		{"MAE", latest.Summary.Mean.MAE, latest.Summary.Std.MAE},
		{"MAPE (%)", latest.Summary.Mean.MAPE, latest.Summary.Std.MAPE},
		{"Directional accuracy", latest.Summary.Mean.DirectionalAccuracy, latest.Summary.Std.DirectionalAccuracy},
		{"Coverage 80%", latest.Summary.Mean.Coverage80, latest.Summary.Std.Coverage80},
		{"Coverage 95%", latest.Summary.Mean.Coverage95, latest.Summary.Std.Coverage95},
	}
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %.4f | %.4f |\n", row.name, row.mean, row.std)
	}
	b.WriteString("\n")

	cov95 := latest.Summary.Mean.Coverage95
	if latest.SucceededFolds() > 0 && (cov95 < 0.90 || cov95 > 0.97) {
		fmt.Fprintf(b, "**Calibration warning:** empirical 95%% coverage %.3f is outside [0.90, 0.97].\n", cov95)
	}
}
