// Package stattest implements the two-window statistical tests behind
// drift scoring. Each test compares a baseline window against a test
// window and reports a statistic with its p-value; a low p-value means
// the windows disagree in the property the test watches.
package stattest

import (
	"math"

	"github.com/montanaflynn/stats"

	"ratecast/domain/core"
)

// Result is the output of a single window test.
type Result struct {
	Name      string  `json:"name"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Detail    string  `json:"detail,omitempty"`
}

// WindowTest is the contract every drift test implements. Compare must
// be a pure function of its inputs: identical windows always produce
// identical results.
type WindowTest interface {
	Name() string
	Description() string
	// MinSamples is the smallest per-window size the test supports.
	MinSamples() int
	Compare(baseline, test []float64) (Result, error)
}

// Battery returns the standard four-test set in report order.
func Battery(maxLag int) []WindowTest {
	return []WindowTest{
		NewKolmogorovSmirnov(),
		NewWelchT(),
		NewLevene(),
		NewLjungBox(maxLag),
	}
}

// checkWindows enforces a test's sample floor on both windows.
func checkWindows(name string, min int, baseline, test []float64) error {
	if len(baseline) < min {
		return core.NewInsufficientDataError(name+" baseline window", min, len(baseline))
	}
	if len(test) < min {
		return core.NewInsufficientDataError(name+" test window", min, len(test))
	}
	return nil
}

// clampP keeps a computed p-value inside [0, 1]; series approximations
// can wander slightly outside.
func clampP(p float64) float64 {
	if math.IsNaN(p) {
		return 1.0
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func meanOf(data []float64) float64 {
	m, err := stats.Mean(data)
	if err != nil {
		return 0
	}
	return m
}

func sampleVarianceOf(data []float64) float64 {
	v, err := stats.SampleVariance(data)
	if err != nil {
		return 0
	}
	return v
}

func medianOf(data []float64) float64 {
	m, err := stats.Median(data)
	if err != nil {
		return 0
	}
	return m
}
