package stattest

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// LjungBox measures serial-correlation change across the window
// boundary. The Q statistic is computed on the concatenated
// baseline+test sequence: a stable process stays near white noise there,
// while a regime change (level shift, new persistence) shows up as
// strong low-lag autocorrelation. Q compares against chi-squared with
// one degree of freedom per lag.
type LjungBox struct {
	maxLag int
}

// NewLjungBox builds the test. maxLag caps the number of lags; the
// effective lag count also shrinks with window size, min(maxLag, n/5).
func NewLjungBox(maxLag int) *LjungBox {
	if maxLag <= 0 {
		maxLag = 10
	}
	return &LjungBox{maxLag: maxLag}
}

func (l *LjungBox) Name() string { return "ljung_box" }

func (l *LjungBox) Description() string {
	return "Detects autocorrelation change across the window boundary"
}

func (l *LjungBox) MinSamples() int { return 10 }

func (l *LjungBox) Compare(baseline, test []float64) (Result, error) {
	if err := checkWindows(l.Name(), l.MinSamples(), baseline, test); err != nil {
		return Result{}, err
	}

	combined := make([]float64, 0, len(baseline)+len(test))
	combined = append(combined, baseline...)
	combined = append(combined, test...)

	n := len(combined)
	lags := l.maxLag
	if byLen := n / 5; byLen < lags {
		lags = byLen
	}
	if lags < 1 {
		lags = 1
	}

	q := 0.0
	nf := float64(n)
	for k := 1; k <= lags; k++ {
		r := autocorrelation(combined, k)
		q += r * r / (nf - float64(k))
	}
	q *= nf * (nf + 2)

	dist := distuv.ChiSquared{K: float64(lags)}
	pValue := clampP(1 - dist.CDF(q))

	return Result{
		Name:      l.Name(),
		Statistic: q,
		PValue:    pValue,
		Detail:    fmt.Sprintf("Q=%.4f lags=%d n=%d", q, lags, n),
	}, nil
}

// autocorrelation computes the lag-k sample autocorrelation.
func autocorrelation(data []float64, lag int) float64 {
	if len(data) <= lag {
		return 0
	}

	n := len(data) - lag
	mean := meanOf(data)

	numerator := 0.0
	denom := 0.0
	for i := 0; i < n; i++ {
		numerator += (data[i] - mean) * (data[i+lag] - mean)
	}
	for _, v := range data {
		denom += (v - mean) * (v - mean)
	}

	if denom == 0 {
		return 0
	}
	return numerator / denom
}

