package recorder

import (
	"fmt"
	"math"
	"strings"

	"RSIPipeline/internal/model"
)

// ValidationError names the first field of a result that failed validation.
type ValidationError struct {
	Symbol string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Symbol, e.Field, e.Reason)
}

// Validate checks that r is complete and in range.
func Validate(r model.RSIResult) error {
	fail := func(field, reason string) error {
		return &ValidationError{Symbol: r.Symbol, Field: field, Reason: reason}
	}

	if strings.TrimSpace(r.Symbol) == "" {
		return fail("symbol", "is empty")
	}
	if r.Date.IsZero() {
		return fail("date", "is missing")
	}
	if r.RSIPeriod <= 0 {
		return fail("rsi_period", "must be positive")
	}
	// Zero prices mean the bar was missing.
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"open", r.Open},
		{"high", r.High},
		{"low", r.Low},
		{"close", r.Close},
	} {
		if !finite(p.value) || p.value <= 0 {
			return fail(p.name, fmt.Sprintf("must be a positive number, got %v", p.value))
		}
	}
	if !finite(r.RSIValue) {
		return fail("rsi_value", "is undefined")
	}
	if r.RSIValue < 0 || r.RSIValue > 100 {
		return fail("rsi_value", fmt.Sprintf("out of range: %v", r.RSIValue))
	}
	if r.Volume != nil && *r.Volume < 0 {
		return fail("volume", "is negative")
	}
	return nil
}

// Valid is the boolean form of Validate.
func Valid(r model.RSIResult) bool {
	return Validate(r) == nil
}

// ValidateBatch returns the first validation error in results, if any.
func ValidateBatch(results []model.RSIResult) error {
	for _, r := range results {
		if err := Validate(r); err != nil {
			return err
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
