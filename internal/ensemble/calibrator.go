// Package ensemble combines per-model forecasts into one calibrated
// multi-step forecast: inverse-error weighting for the point path,
// Student-t intervals for the bands.
package ensemble

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"ratecast/domain/core"
	"ratecast/domain/forecast"
)

// DefaultDegreesOfFreedom reflects a typical training-window size. The
// t critical value at 30 dof is about 2.042 against the 1.96 z-score,
// which is what lifts empirical 95% coverage without touching the
// point forecasts.
const DefaultDegreesOfFreedom = 30.0

// CalibratorConfig configures interval calibration.
type CalibratorConfig struct {
	// DegreesOfFreedom for the Student-t critical values. Dispersion is
	// estimated from finite data, so a large-sample z-score would
	// systematically under-cover. Zero means DefaultDegreesOfFreedom.
	DegreesOfFreedom float64 `yaml:"degrees_of_freedom" default:"30"`
}

// Calibrator turns (mean, dispersion) pairs into 80% and 95% bands.
// Critical values are precomputed at construction; Interval never fails
// on configuration, only on bad dispersion input.
type Calibrator struct {
	dof float64
	t80 float64
	t95 float64
}

// NewCalibrator validates the configuration and precomputes critical
// values.
func NewCalibrator(cfg CalibratorConfig) (*Calibrator, error) {
	dof := cfg.DegreesOfFreedom
	if dof == 0 {
		dof = DefaultDegreesOfFreedom
	}
	if dof < 1 || math.IsNaN(dof) || math.IsInf(dof, 0) {
		return nil, core.NewConfigError("degrees_of_freedom", "must be >= 1")
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	return &Calibrator{
		dof: dof,
		t80: dist.Quantile(0.90),
		t95: dist.Quantile(0.975),
	}, nil
}

// DegreesOfFreedom reports the configured dof, for audit logging.
func (c *Calibrator) DegreesOfFreedom() float64 { return c.dof }

// Interval returns the band at the given confidence level (0.80 or
// 0.95). Zero, negative or non-finite dispersion is a calibration
// error: a zero-width interval is a lie, not a forecast.
func (c *Calibrator) Interval(mean, dispersion float64, level float64) (low, high float64, err error) {
	if err := c.checkInputs(mean, dispersion); err != nil {
		return 0, 0, err
	}

	var crit float64
	switch level {
	case 0.80:
		crit = c.t80
	case 0.95:
		crit = c.t95
	default:
		return 0, 0, core.NewConfigError("confidence level", "only 0.80 and 0.95 are calibrated")
	}

	return mean - crit*dispersion, mean + crit*dispersion, nil
}

// Point builds a fully banded forecast point for one future step.
func (c *Calibrator) Point(date core.Timestamp, mean, dispersion float64) (forecast.ForecastPoint, error) {
	if err := c.checkInputs(mean, dispersion); err != nil {
		return forecast.ForecastPoint{}, err
	}

	return forecast.ForecastPoint{
		Date:     date,
		Mean:     mean,
		CI80Low:  mean - c.t80*dispersion,
		CI80High: mean + c.t80*dispersion,
		CI95Low:  mean - c.t95*dispersion,
		CI95High: mean + c.t95*dispersion,
	}, nil
}

func (c *Calibrator) checkInputs(mean, dispersion float64) error {
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return core.NewCalibrationError(0, "non-finite mean")
	}
	if math.IsNaN(dispersion) || math.IsInf(dispersion, 0) {
		return core.NewCalibrationError(0, "non-finite dispersion")
	}
	if dispersion <= 0 {
		return core.NewCalibrationError(0, "dispersion must be positive")
	}
	return nil
}
