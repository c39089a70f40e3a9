package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ratecast/domain/core"
	"ratecast/domain/drift"
	"ratecast/internal/driftscore"
	"ratecast/internal/trend"
	"ratecast/ports"
)

// DriftService evaluates distribution drift between the trailing test
// window and the baseline window before it, appends each report to
// history, and derives trend state from the accumulated reports.
type DriftService struct {
	reader         ports.SeriesReader
	scorer         *driftscore.Scorer
	analyzer       *trend.Analyzer
	store          ports.HistoryStore
	baselineWindow int
	testWindow     int
	log            zerolog.Logger
}

func NewDriftService(
	reader ports.SeriesReader,
	scorer *driftscore.Scorer,
	analyzer *trend.Analyzer,
	store ports.HistoryStore,
	baselineWindow, testWindow int,
	log zerolog.Logger,
) (*DriftService, error) {
	if baselineWindow < scorer.MinWindowSize() {
		return nil, core.NewConfigError("drift.baseline_window",
			fmt.Sprintf("%d below scorer minimum %d", baselineWindow, scorer.MinWindowSize()))
	}
	if testWindow < scorer.MinWindowSize() {
		return nil, core.NewConfigError("drift.test_window",
			fmt.Sprintf("%d below scorer minimum %d", testWindow, scorer.MinWindowSize()))
	}
	return &DriftService{
		reader:         reader,
		scorer:         scorer,
		analyzer:       analyzer,
		store:          store,
		baselineWindow: baselineWindow,
		testWindow:     testWindow,
		log:            log.With().Str("component", "drift_service").Logger(),
	}, nil
}

// Evaluate scores the latest windows and appends the report to history.
// Windows are cut from the series tail: the most recent testWindow
// observations against the baselineWindow observations before them.
func (s *DriftService) Evaluate(ctx context.Context, source string, horizon core.Horizon) (drift.Report, error) {
	series, err := s.reader.Read(ctx, source)
	if err != nil {
		return drift.Report{}, err
	}

	need := s.baselineWindow + s.testWindow
	if series.Len() < need {
		return drift.Report{}, core.NewInsufficientDataError("drift windows", need, series.Len())
	}

	tail := series.Tail(need).Values()
	baseline := tail[:s.baselineWindow]
	test := tail[s.baselineWindow:]

	report, err := s.scorer.Score(baseline, test, horizon)
	if err != nil {
		return drift.Report{}, err
	}

	key, rec, err := ports.NewDriftRecord(report)
	if err != nil {
		return report, err
	}
	if err := s.store.Append(ctx, key, rec); err != nil {
		return report, fmt.Errorf("record drift report: %w", err)
	}
	return report, nil
}

// History returns past drift reports for the horizon, oldest first.
func (s *DriftService) History(ctx context.Context, horizon core.Horizon) ([]drift.Report, error) {
	key := ports.HistoryKey{Metric: ports.MetricDriftScore, Horizon: horizon}
	records, err := s.store.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return ports.DecodeDriftReports(records)
}

// Trend derives the current trend state from recorded drift history.
// An empty history is a valid UNKNOWN trend, not an error.
func (s *DriftService) Trend(ctx context.Context, horizon core.Horizon) (drift.TrendReport, error) {
	history, err := s.History(ctx, horizon)
	if err != nil {
		return drift.TrendReport{}, err
	}
	return s.analyzer.Analyze(history), nil
}
