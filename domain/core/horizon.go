package core

import (
	"fmt"
	"strings"
	"time"
)

// Horizon is a scheduled forecast horizon. Each horizon runs as its own
// OS process on its own schedule; the label doubles as the history key
// component.
type Horizon string

const (
	HorizonDaily    Horizon = "daily"
	HorizonBiweekly Horizon = "biweekly"
	HorizonMonthly  Horizon = "monthly"
)

// VolatilityFamily names the class of volatility model the ensemble
// prefers for a horizon. The choice is a static lookup by horizon label,
// never a data-driven decision.
type VolatilityFamily string

const (
	// VolatilityAsymmetricShock weighs negative shocks heavier than
	// positive ones, which matches short-horizon FX behavior.
	VolatilityAsymmetricShock VolatilityFamily = "asymmetric_shock"
	// VolatilityMeanReverting treats shocks symmetrically and pulls
	// dispersion back to its long-run level.
	VolatilityMeanReverting VolatilityFamily = "symmetric_mean_reverting"
)

type horizonSpec struct {
	steps    int
	stepSize time.Duration
	family   VolatilityFamily
}

var horizons = map[Horizon]horizonSpec{
	HorizonDaily:    {steps: 1, stepSize: 24 * time.Hour, family: VolatilityAsymmetricShock},
	HorizonBiweekly: {steps: 14, stepSize: 24 * time.Hour, family: VolatilityMeanReverting},
	HorizonMonthly:  {steps: 30, stepSize: 24 * time.Hour, family: VolatilityMeanReverting},
}

// ParseHorizon parses a horizon label.
func ParseHorizon(s string) (Horizon, error) {
	h := Horizon(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := horizons[h]; !ok {
		return "", NewConfigError("horizon", fmt.Sprintf("unknown label %q", s))
	}
	return h, nil
}

// Horizons lists the known horizons in schedule order.
func Horizons() []Horizon {
	return []Horizon{HorizonDaily, HorizonBiweekly, HorizonMonthly}
}

func (h Horizon) String() string { return string(h) }

// Steps is the number of future observations a forecast at this horizon
// must produce.
func (h Horizon) Steps() int { return horizons[h].steps }

// StepSize is the spacing between consecutive forecast points.
func (h Horizon) StepSize() time.Duration { return horizons[h].stepSize }

// Family is the volatility model family preferred at this horizon.
func (h Horizon) Family() VolatilityFamily { return horizons[h].family }

// Valid reports whether h is a known horizon label.
func (h Horizon) Valid() bool {
	_, ok := horizons[h]
	return ok
}
