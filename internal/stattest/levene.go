package stattest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Levene tests for a variance shift between windows. This is the
// Brown-Forsythe variant, centering on the group median instead of the
// mean, which keeps the test honest on the fat-tailed returns FX data
// produces.
type Levene struct{}

func NewLevene() *Levene { return &Levene{} }

func (l *Levene) Name() string { return "levene" }

func (l *Levene) Description() string {
	return "Detects variance shift between windows (Brown-Forsythe)"
}

func (l *Levene) MinSamples() int { return 5 }

func (l *Levene) Compare(baseline, test []float64) (Result, error) {
	if err := checkWindows(l.Name(), l.MinSamples(), baseline, test); err != nil {
		return Result{}, err
	}

	z1 := absDeviationsFromMedian(baseline)
	z2 := absDeviationsFromMedian(test)

	n1, n2 := float64(len(z1)), float64(len(z2))
	total := n1 + n2

	zBar1, zBar2 := meanOf(z1), meanOf(z2)
	zBar := (n1*zBar1 + n2*zBar2) / total

	// One-way ANOVA on the absolute deviations, k = 2 groups.
	between := n1*math.Pow(zBar1-zBar, 2) + n2*math.Pow(zBar2-zBar, 2)
	within := 0.0
	for _, z := range z1 {
		within += math.Pow(z-zBar1, 2)
	}
	for _, z := range z2 {
		within += math.Pow(z-zBar2, 2)
	}

	if within == 0 {
		p := 1.0
		if between > 0 {
			p = 0.0
		}
		return Result{Name: l.Name(), Statistic: 0, PValue: p,
			Detail: "zero within-group deviation"}, nil
	}

	w := (total - 2) * between / within
	dist := distuv.F{D1: 1, D2: total - 2}
	pValue := clampP(1 - dist.CDF(w))

	return Result{
		Name:      l.Name(),
		Statistic: w,
		PValue:    pValue,
		Detail:    fmt.Sprintf("W=%.4f df2=%.0f", w, total-2),
	}, nil
}

func absDeviationsFromMedian(data []float64) []float64 {
	med := medianOf(data)
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = math.Abs(v - med)
	}
	return out
}
