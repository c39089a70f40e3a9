package stattest

import (
	"fmt"
	"math"
	"sort"
)

// KolmogorovSmirnov is the two-sample KS test: the largest vertical gap
// between the two windows' empirical CDFs. It reacts to any change in
// distribution shape, which is why it carries the largest weight in the
// drift battery.
type KolmogorovSmirnov struct{}

func NewKolmogorovSmirnov() *KolmogorovSmirnov { return &KolmogorovSmirnov{} }

func (k *KolmogorovSmirnov) Name() string { return "kolmogorov_smirnov" }

func (k *KolmogorovSmirnov) Description() string {
	return "Detects distribution shape change between windows"
}

func (k *KolmogorovSmirnov) MinSamples() int { return 8 }

func (k *KolmogorovSmirnov) Compare(baseline, test []float64) (Result, error) {
	if err := checkWindows(k.Name(), k.MinSamples(), baseline, test); err != nil {
		return Result{}, err
	}

	d := ksStatistic(baseline, test)

	n1, n2 := float64(len(baseline)), float64(len(test))
	ne := n1 * n2 / (n1 + n2)
	// Small-sample corrected argument for the asymptotic Kolmogorov
	// distribution (Numerical Recipes form).
	lambda := (math.Sqrt(ne) + 0.12 + 0.11/math.Sqrt(ne)) * d

	return Result{
		Name:      k.Name(),
		Statistic: d,
		PValue:    ksPValue(lambda),
		Detail:    fmt.Sprintf("D=%.4f n1=%d n2=%d", d, len(baseline), len(test)),
	}, nil
}

// ksStatistic computes sup|F1(x) - F2(x)| with a merge walk over the
// sorted samples.
func ksStatistic(sample1, sample2 []float64) float64 {
	s1 := make([]float64, len(sample1))
	s2 := make([]float64, len(sample2))
	copy(s1, sample1)
	copy(s2, sample2)
	sort.Float64s(s1)
	sort.Float64s(s2)

	n1, n2 := float64(len(s1)), float64(len(s2))

	i, j := 0, 0
	maxD := 0.0
	for i < len(s1) && j < len(s2) {
		v1, v2 := s1[i], s2[j]
		if v1 <= v2 {
			i++
		}
		if v2 <= v1 {
			j++
		}
		diff := math.Abs(float64(i)/n1 - float64(j)/n2)
		if diff > maxD {
			maxD = diff
		}
	}
	// Once one sample is exhausted its ECDF sits at 1; the remaining
	// gap can only shrink, so no tail walk is needed.
	return maxD
}

// ksPValue evaluates the Kolmogorov distribution tail
// P(D > x) = 2 * sum_{j>=1} (-1)^{j-1} exp(-2 j^2 x^2).
func ksPValue(lambda float64) float64 {
	if lambda <= 0 {
		return 1.0
	}
	sum := 0.0
	for j := 1; j <= 100; j++ {
		term := math.Exp(-2 * float64(j*j) * lambda * lambda)
		if j%2 == 0 {
			term = -term
		}
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
	}
	return clampP(2 * sum)
}
