package timeseries

import (
	"fmt"
	"math"
	"time"

	"ratecast/domain/core"
)

// Point is one observation of the tracked series.
type Point struct {
	Time  core.Timestamp `json:"time"`
	Value float64        `json:"value"`
}

// Series is a time-indexed numeric series, e.g. a daily exchange rate.
// INVARIANTS:
// - timestamps strictly increasing, no duplicates
// - every value finite
// The core never mutates a Series once built; window helpers return views
// over the same backing array.
type Series struct {
	points []Point
}

// New builds a Series and enforces the index invariants. Non-finite
// values and out-of-order timestamps are construction errors, not
// warnings: a silently reordered rate series poisons every consumer
// downstream.
func New(points []Point) (Series, error) {
	for i, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return Series{}, fmt.Errorf("%w: non-finite value at index %d (%s)",
				core.ErrNonMonotonicSeries, i, p.Time)
		}
		if i > 0 && !points[i-1].Time.Before(p.Time) {
			return Series{}, fmt.Errorf("%w: index %d (%s) not after index %d (%s)",
				core.ErrNonMonotonicSeries, i, p.Time, i-1, points[i-1].Time)
		}
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return Series{points: cp}, nil
}

// FromValues builds a regularly spaced series starting at start. Used by
// adapters that read value columns and by tests.
func FromValues(start time.Time, step time.Duration, values []float64) (Series, error) {
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{
			Time:  core.NewTimestamp(start.Add(time.Duration(i) * step)),
			Value: v,
		}
	}
	return New(points)
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.points) }

// IsEmpty reports whether the series has no observations.
func (s Series) IsEmpty() bool { return len(s.points) == 0 }

// At returns the i-th observation.
func (s Series) At(i int) Point { return s.points[i] }

// First returns the earliest observation. Panics on an empty series.
func (s Series) First() Point { return s.points[0] }

// Last returns the latest observation. Panics on an empty series.
func (s Series) Last() Point { return s.points[len(s.points)-1] }

// Values copies out the observation values in index order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// Times copies out the observation timestamps in index order.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Time.Time()
	}
	return out
}

// Slice returns the observations in [from, to) by position. Bounds are
// clamped, so a sloppy caller gets an empty series rather than a panic.
func (s Series) Slice(from, to int) Series {
	if from < 0 {
		from = 0
	}
	if to > len(s.points) {
		to = len(s.points)
	}
	if from >= to {
		return Series{}
	}
	return Series{points: s.points[from:to]}
}

// Tail returns the last n observations, or the whole series when it is
// shorter than n.
func (s Series) Tail(n int) Series {
	if n >= len(s.points) {
		return s
	}
	return Series{points: s.points[len(s.points)-n:]}
}

// Between returns the observations with from <= time < to.
func (s Series) Between(from, to time.Time) Series {
	lo := 0
	for lo < len(s.points) && s.points[lo].Time.Time().Before(from) {
		lo++
	}
	hi := lo
	for hi < len(s.points) && s.points[hi].Time.Time().Before(to) {
		hi++
	}
	return Series{points: s.points[lo:hi]}
}

// LogReturns computes ln(v_t / v_{t-1}) for consecutive observations.
// Non-positive levels yield an error since the ratio is undefined.
func (s Series) LogReturns() ([]float64, error) {
	if len(s.points) < 2 {
		return nil, core.NewInsufficientDataError("log returns", 2, len(s.points))
	}
	out := make([]float64, 0, len(s.points)-1)
	for i := 1; i < len(s.points); i++ {
		prev, cur := s.points[i-1].Value, s.points[i].Value
		if prev <= 0 || cur <= 0 {
			return nil, fmt.Errorf("log returns undefined: non-positive level at index %d", i)
		}
		out = append(out, math.Log(cur/prev))
	}
	return out, nil
}
