// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData      = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInvalidData = &Error{Code: "INVALID_DATA", Message: "input series failed validation"}

	// Feed errors
	ErrFetchFailed    = &Error{Code: "FETCH_FAILED", Message: "market data fetch failed"}
	ErrSymbolNotFound = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}

	// Cache errors
	ErrCacheMiss = &Error{Code: "CACHE_MISS", Message: "no cached bars for series"}

	// Strategy errors
	ErrUnknownStrategy  = &Error{Code: "UNKNOWN_STRATEGY", Message: "strategy not registered"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}

	// Evaluation errors
	ErrUnknownMetric = &Error{Code: "UNKNOWN_METRIC", Message: "unknown ranking metric"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// LLM errors
	ErrLLMFailed  = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
	ErrLLMTimeout = &Error{Code: "LLM_TIMEOUT", Message: "LLM request timeout"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid credentials"}
	ErrJobNotFound  = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
)
