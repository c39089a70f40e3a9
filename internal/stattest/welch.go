package stattest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// WelchT tests for a mean shift between windows without assuming equal
// variances. Degrees of freedom come from the Welch-Satterthwaite
// equation; the p-value from the exact Student-t CDF.
type WelchT struct{}

func NewWelchT() *WelchT { return &WelchT{} }

func (w *WelchT) Name() string { return "welch_t" }

func (w *WelchT) Description() string {
	return "Detects mean shift between windows under unequal variances"
}

func (w *WelchT) MinSamples() int { return 5 }

func (w *WelchT) Compare(baseline, test []float64) (Result, error) {
	if err := checkWindows(w.Name(), w.MinSamples(), baseline, test); err != nil {
		return Result{}, err
	}

	n1, n2 := float64(len(baseline)), float64(len(test))
	mean1, mean2 := meanOf(baseline), meanOf(test)
	var1, var2 := sampleVarianceOf(baseline), sampleVarianceOf(test)

	se := math.Sqrt(var1/n1 + var2/n2)
	if se == 0 {
		// Both windows constant. Identical constants mean no shift,
		// different constants mean a certain one.
		p := 1.0
		if mean1 != mean2 {
			p = 0.0
		}
		return Result{Name: w.Name(), Statistic: 0, PValue: p,
			Detail: "zero variance in both windows"}, nil
	}

	tStat := (mean2 - mean1) / se
	df := math.Pow(var1/n1+var2/n2, 2) /
		(math.Pow(var1/n1, 2)/(n1-1) + math.Pow(var2/n2, 2)/(n2-1))
	if df < 1 {
		df = 1
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pValue := clampP(2 * dist.CDF(-math.Abs(tStat)))

	return Result{
		Name:      w.Name(),
		Statistic: tStat,
		PValue:    pValue,
		Detail:    fmt.Sprintf("t=%.4f df=%.1f mean_shift=%.4f", tStat, df, mean2-mean1),
	}, nil
}
