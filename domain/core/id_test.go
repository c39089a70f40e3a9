package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDString tests ID string conversion
func TestIDString(t *testing.T) {
	id := ID("test-123")
	if id.String() != "test-123" {
		t.Errorf("Expected String() to return 'test-123', got '%s'", id.String())
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	emptyID := ID("")
	if !emptyID.IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}

	nonEmptyID := ID("not-empty")
	if nonEmptyID.IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseModelID tests model ID parsing
func TestParseModelID(t *testing.T) {
	tests := []struct {
		input    string
		expected ModelID
		hasError bool
	}{
		{"arima_daily", ModelID("arima_daily"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseModelID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	tests := []struct {
		input    string
		expected RunID
		hasError bool
	}{
		{"run-123", RunID("run-123"), false},
		{"", "", true},
	}

	for _, test := range tests {
		result, err := ParseRunID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestParseHorizon tests horizon label parsing and the static table
func TestParseHorizon(t *testing.T) {
	tests := []struct {
		input    string
		expected Horizon
		hasError bool
	}{
		{"daily", HorizonDaily, false},
		{"  Biweekly ", HorizonBiweekly, false},
		{"monthly", HorizonMonthly, false},
		{"hourly", "", true},
		{"", "", true},
	}

	for _, test := range tests {
		result, err := ParseHorizon(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if test.hasError && !IsConfigError(err) {
			t.Errorf("Expected config error for input '%s', got %v", test.input, err)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

func TestHorizonTable(t *testing.T) {
	if got := HorizonDaily.Steps(); got != 1 {
		t.Errorf("daily steps = %d, want 1", got)
	}
	if got := HorizonBiweekly.Steps(); got != 14 {
		t.Errorf("biweekly steps = %d, want 14", got)
	}
	if got := HorizonMonthly.Steps(); got != 30 {
		t.Errorf("monthly steps = %d, want 30", got)
	}
	if HorizonDaily.Family() != VolatilityAsymmetricShock {
		t.Error("daily horizon should prefer the asymmetric shock family")
	}
	if HorizonMonthly.Family() != VolatilityMeanReverting {
		t.Error("monthly horizon should prefer the mean reverting family")
	}
	for _, h := range Horizons() {
		if !h.Valid() {
			t.Errorf("listed horizon %s reported invalid", h)
		}
		if h.StepSize() <= 0 {
			t.Errorf("horizon %s has non-positive step size", h)
		}
	}
}

// TestErrorTaxonomy exercises the wrap/Is pairs.
func TestErrorTaxonomy(t *testing.T) {
	if err := NewConfigError("weights", "sum 0.9 != 1.0"); !IsConfigError(err) {
		t.Errorf("config error not recognized: %v", err)
	}
	if err := NewInsufficientDataError("drift window", 30, 12); !IsInsufficientData(err) {
		t.Errorf("insufficient data error not recognized: %v", err)
	}
	if err := NewInsufficientDataError("drift window", 30, 12); !IsRecoverable(err) {
		t.Errorf("insufficient data should be recoverable: %v", err)
	}
	if err := NewInsufficientModelsError(3, 3); !IsRecoverable(err) {
		t.Errorf("insufficient models should be recoverable: %v", err)
	}
	if err := NewLockTimeoutError("drift_score:daily", 0); !IsLockTimeout(err) {
		t.Errorf("lock timeout error not recognized: %v", err)
	}
	if IsRecoverable(NewConfigError("x", "y")) {
		t.Error("config errors are never recoverable")
	}
}
