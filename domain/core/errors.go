package core

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrSeriesNotFound = fmt.Errorf("%w: series", ErrNotFound)
	ErrReportNotFound = fmt.Errorf("%w: report", ErrNotFound)

	// Configuration errors, raised at construction time only
	ErrConfig = errors.New("invalid configuration")

	// Data errors
	ErrInsufficientData   = errors.New("insufficient data")
	ErrInsufficientModels = errors.New("no usable model results")
	ErrNonMonotonicSeries = errors.New("series timestamps not strictly increasing")

	// Computation errors
	ErrCalibration = errors.New("interval calibration failed")

	// Validation errors
	ErrLeakage = errors.New("train/test leakage detected")

	// Persistence errors
	ErrLockTimeout = errors.New("history lock acquisition timed out")
)

// Error constructors with context
func NewConfigError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfig, field, reason)
}

func NewInsufficientDataError(what string, need, got int) error {
	return fmt.Errorf("%w: %s requires %d observations, got %d", ErrInsufficientData, what, need, got)
}

func NewInsufficientModelsError(total, excluded int) error {
	return fmt.Errorf("%w: %d of %d model results excluded", ErrInsufficientModels, excluded, total)
}

func NewCalibrationError(step int, reason string) error {
	return fmt.Errorf("%w: step %d: %s", ErrCalibration, step, reason)
}

func NewLeakageError(maxTrain, minTest int) error {
	return fmt.Errorf("%w: max(train) position %d >= min(test) position %d", ErrLeakage, maxTrain, minTest)
}

func NewLockTimeoutError(key string, waited time.Duration) error {
	return fmt.Errorf("%w: key %s after %s", ErrLockTimeout, key, waited)
}

// Error checking helpers
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// IsRecoverable reports whether the caller can expect the condition to clear
// on its own as more observations accumulate. Scheduled jobs log these and
// exit zero rather than alerting.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrInsufficientModels)
}
