package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratecast/adapters/history"
	"ratecast/app"
	"ratecast/domain/core"
	"ratecast/domain/drift"
	"ratecast/domain/timeseries"
	"ratecast/domain/validation"
	"ratecast/internal/driftscore"
	"ratecast/internal/ensemble"
	"ratecast/internal/trend"
	"ratecast/internal/walkforward"
	"ratecast/ports"
)

func TestHealthz(t *testing.T) {
	server := newTestServer(t, history.NewMemoryStore())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDriftEndpoint(t *testing.T) {
	store := history.NewMemoryStore()
	seedDriftReports(t, store, 42.0, 81.5)
	server := newTestServer(t, store)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drift/daily", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status driftStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, core.HorizonDaily, status.Horizon)
	assert.Equal(t, 2, status.Evaluations)
	require.NotNil(t, status.Latest)
	assert.Equal(t, 81.5, status.Latest.CombinedScore)
	assert.Equal(t, 81.5, status.Trend.LatestScore)
}

func TestDriftEndpoint_EmptyHistory(t *testing.T) {
	server := newTestServer(t, history.NewMemoryStore())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drift/monthly", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status driftStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Nil(t, status.Latest)
	assert.Equal(t, drift.TrendUnknown, status.Trend.Trend)
}

func TestDriftEndpoint_UnknownHorizon(t *testing.T) {
	server := newTestServer(t, history.NewMemoryStore())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drift/hourly", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "hourly")
}

func TestValidationEndpoint(t *testing.T) {
	store := history.NewMemoryStore()
	seedValidationReport(t, store)
	server := newTestServer(t, store)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/validation/daily", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status validationStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Runs)
	require.NotNil(t, status.Latest)
	assert.Equal(t, 12, len(status.Latest.Folds))
}

func TestValidationEndpoint_NothingRecorded(t *testing.T) {
	server := newTestServer(t, history.NewMemoryStore())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/validation/daily", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportEndpoint(t *testing.T) {
	store := history.NewMemoryStore()
	seedDriftReports(t, store, 42.0, 81.5)
	seedValidationReport(t, store)
	server := newTestServer(t, store)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report/daily", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "Forecast monitor")
	assert.Contains(t, body, "<table>", "drift test battery renders as a table")
	assert.Contains(t, body, "81.5")
}

func TestRateLimit(t *testing.T) {
	store := history.NewMemoryStore()
	drift, validation := newServices(t, store)
	server := NewServer(Config{RateLimit: 0.001, RateBurst: 1}, drift, validation, zerolog.Nop())

	first := httptest.NewRecorder()
	server.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	server.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

// Helpers

type nopReader struct{}

func (nopReader) Read(ctx context.Context, source string) (timeseries.Series, error) {
	return timeseries.Series{}, nil
}

func newTestServer(t *testing.T, store ports.HistoryStore) *Server {
	t.Helper()
	driftSvc, validationSvc := newServices(t, store)
	return NewServer(Config{RateLimit: 1000, RateBurst: 1000}, driftSvc, validationSvc, zerolog.Nop())
}

func newServices(t *testing.T, store ports.HistoryStore) (*app.DriftService, *app.ValidationService) {
	t.Helper()
	scorer, err := driftscore.New(driftscore.Config{}, zerolog.Nop())
	require.NoError(t, err)
	analyzer, err := trend.New(trend.Config{}, zerolog.Nop())
	require.NoError(t, err)
	driftSvc, err := app.NewDriftService(nopReader{}, scorer, analyzer, store, 90, 30, zerolog.Nop())
	require.NoError(t, err)

	calibrator, err := ensemble.NewCalibrator(ensemble.CalibratorConfig{})
	require.NoError(t, err)
	combiner := ensemble.NewCombiner(calibrator, zerolog.Nop())
	validator, err := walkforward.New(walkforward.Config{
		Mode:         validation.ModeExpanding,
		InitialTrain: 100,
		TestWindow:   10,
		Step:         10,
	}, zerolog.Nop())
	require.NoError(t, err)
	validationSvc := app.NewValidationService(nopReader{}, nil, combiner, validator, store, zerolog.Nop())

	return driftSvc, validationSvc
}

func seedDriftReports(t *testing.T, store ports.HistoryStore, scores ...float64) {
	t.Helper()
	base := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	for i, score := range scores {
		severity := drift.SeverityLow
		if score >= 75 {
			severity = drift.SeverityCritical
		}
		report := drift.Report{
			ReportID:      core.NewReportID(),
			Horizon:       core.HorizonDaily,
			EvaluatedAt:   core.NewTimestamp(base.AddDate(0, 0, i)),
			CombinedScore: score,
			Severity:      severity,
			BaselineN:     90,
			TestN:         30,
			Tests: []drift.TestResult{
				{Name: "ks", Statistic: 0.4, PValue: 0.001, SubScore: 66, Weight: 0.40},
			},
		}
		key, rec, err := ports.NewDriftRecord(report)
		require.NoError(t, err)
		require.NoError(t, store.Append(context.Background(), key, rec))
	}
}

func seedValidationReport(t *testing.T, store ports.HistoryStore) {
	t.Helper()
	report := validation.Report{
		RunID:       core.NewRunID(),
		Horizon:     core.HorizonDaily,
		Mode:        validation.ModeExpanding,
		GeneratedAt: core.NewTimestamp(time.Date(2024, 6, 2, 7, 0, 0, 0, time.UTC)),
		SeriesLen:   800,
		Folds:       make([]validation.Fold, 12),
		Summary: validation.Summary{
			Mean: validation.FoldMetrics{RMSE: 0.004, Coverage80: 0.81, Coverage95: 0.95},
		},
	}
	key, rec, err := ports.NewValidationRecord(report)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), key, rec))
}
