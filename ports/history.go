package ports

import (
	"context"
	"encoding/json"
	"fmt"

	"ratecast/domain/core"
	"ratecast/domain/drift"
	"ratecast/domain/validation"
)

// MetricType names the kind of payload a history key holds.
type MetricType string

const (
	MetricDriftScore  MetricType = "drift_score"
	MetricFoldMetrics MetricType = "fold_metrics"
)

// HistoryKey identifies one append-only record set: one per
// (metric type, horizon) pair. Histories under different keys are
// logically independent; no cross-key ordering exists or is needed.
type HistoryKey struct {
	Metric  MetricType   `json:"metric"`
	Horizon core.Horizon `json:"horizon"`
}

func (k HistoryKey) String() string {
	return string(k.Metric) + ":" + string(k.Horizon)
}

// Validate rejects keys that would silently create junk histories.
func (k HistoryKey) Validate() error {
	switch k.Metric {
	case MetricDriftScore, MetricFoldMetrics:
	default:
		return core.NewConfigError("history key", fmt.Sprintf("unknown metric type %q", k.Metric))
	}
	if !k.Horizon.Valid() {
		return core.NewConfigError("history key", fmt.Sprintf("unknown horizon %q", k.Horizon))
	}
	return nil
}

// HistoryRecord is the store's unit of persistence. Seq is assigned by
// the store at append time and is strictly increasing within a key.
type HistoryRecord struct {
	Seq       int64           `json:"seq"`
	Timestamp core.Timestamp  `json:"timestamp"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
}

// HistoryStore is the only mutable shared state in the system. Multiple
// OS processes append concurrently; within a key, appends are linearized
// by the store's lock and a successful Append is never lost to a
// concurrent writer. Append blocks at most for the store's configured
// lock timeout, then fails with a lock timeout error. Read never blocks
// on writers: it observes the last committed state.
type HistoryStore interface {
	Append(ctx context.Context, key HistoryKey, rec HistoryRecord) error
	Read(ctx context.Context, key HistoryKey) ([]HistoryRecord, error)
}

// NewDriftRecord wraps a drift report for appending under its key.
func NewDriftRecord(report drift.Report) (HistoryKey, HistoryRecord, error) {
	key := HistoryKey{Metric: MetricDriftScore, Horizon: report.Horizon}
	payload, err := json.Marshal(report)
	if err != nil {
		return HistoryKey{}, HistoryRecord{}, fmt.Errorf("encode drift report: %w", err)
	}
	return key, HistoryRecord{
		Timestamp: report.EvaluatedAt,
		Key:       key.String(),
		Payload:   payload,
	}, nil
}

// DecodeDriftReports unpacks drift reports from history records in
// append order.
func DecodeDriftReports(records []HistoryRecord) ([]drift.Report, error) {
	out := make([]drift.Report, 0, len(records))
	for _, rec := range records {
		var report drift.Report
		if err := json.Unmarshal(rec.Payload, &report); err != nil {
			return nil, fmt.Errorf("decode drift report seq %d: %w", rec.Seq, err)
		}
		out = append(out, report)
	}
	return out, nil
}

// NewValidationRecord wraps a validation report for appending under its
// key. Only the summary and fold shape go to history; full fold detail
// stays with the caller.
func NewValidationRecord(report validation.Report) (HistoryKey, HistoryRecord, error) {
	key := HistoryKey{Metric: MetricFoldMetrics, Horizon: report.Horizon}
	payload, err := json.Marshal(report)
	if err != nil {
		return HistoryKey{}, HistoryRecord{}, fmt.Errorf("encode validation report: %w", err)
	}
	return key, HistoryRecord{
		Timestamp: report.GeneratedAt,
		Key:       key.String(),
		Payload:   payload,
	}, nil
}

// DecodeValidationReports unpacks validation reports from history
// records in append order.
func DecodeValidationReports(records []HistoryRecord) ([]validation.Report, error) {
	out := make([]validation.Report, 0, len(records))
	for _, rec := range records {
		var report validation.Report
		if err := json.Unmarshal(rec.Payload, &report); err != nil {
			return nil, fmt.Errorf("decode validation report seq %d: %w", rec.Seq, err)
		}
		out = append(out, report)
	}
	return out, nil
}
