package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies why a symbol produced no result.
type Kind string

const (
	// KindDataUnavailable covers provider failures, timeouts and short history.
	KindDataUnavailable Kind = "data_unavailable"
	// KindComputationError means the bars were fetched but RSI is undefined.
	KindComputationError Kind = "computation_error"
)

// Error is the per-symbol failure returned by Analyzer.
type Error struct {
	Kind    Kind
	Symbol  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Symbol, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Symbol, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewDataUnavailable creates a data-unavailable error
func NewDataUnavailable(symbol, message string, cause error) *Error {
	return &Error{Kind: KindDataUnavailable, Symbol: symbol, Message: message, Cause: cause}
}

// NewComputationError creates a computation error
func NewComputationError(symbol, message string, cause error) *Error {
	return &Error{Kind: KindComputationError, Symbol: symbol, Message: message, Cause: cause}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsDataUnavailable reports whether err is a data-unavailable failure.
func IsDataUnavailable(err error) bool { return KindOf(err) == KindDataUnavailable }

// IsComputationError reports whether err is a computation failure.
func IsComputationError(err error) bool { return KindOf(err) == KindComputationError }
