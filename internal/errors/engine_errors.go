package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Errors that abort a run
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryState         ErrorCategory = "STATE"

	// Errors reported to the caller without invalidating other runs
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	ErrorCategoryData       ErrorCategory = "DATA"
	ErrorCategoryIO         ErrorCategory = "IO"
	ErrorCategoryNetwork    ErrorCategory = "NETWORK"
)

// EngineError represents a categorized error with context
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether the run that produced this error cannot continue
func (e *EngineError) IsFatal() bool {
	switch e.Category {
	case ErrorCategoryFatal, ErrorCategoryConfiguration, ErrorCategoryState:
		return true
	}
	return false
}

// IsRetryable reports whether repeating the operation may succeed
func (e *EngineError) IsRetryable() bool {
	return e.Category == ErrorCategoryNetwork || e.Category == ErrorCategoryIO
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewEngineError creates a new categorized error
func NewEngineError(category ErrorCategory, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with engine error context
func WrapError(err error, category ErrorCategory, component, operation string) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// NewConfigurationError reports an invalid setting at field.
func NewConfigurationError(field, message string) *EngineError {
	return NewEngineError(ErrorCategoryConfiguration, "config", "validate", message).WithContext("field", field)
}

// NewStateError wraps a lifecycle violation raised while processing a run.
func NewStateError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryState, component, operation)
}

// NewDataError reports malformed input data.
func NewDataError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryData, component, operation, message)
}

// NewIOError wraps a storage or file failure.
func NewIOError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryIO, component, operation)
}

// NewNetworkError wraps a remote call failure.
func NewNetworkError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryNetwork, component, operation)
}

// AsEngineError extracts an *EngineError from an error chain.
func AsEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsCategory reports whether err carries the given category anywhere in its chain.
func IsCategory(err error, category ErrorCategory) bool {
	ee, ok := AsEngineError(err)
	return ok && ee.Category == category
}

// IsFatal reports whether err should abort a run.
func IsFatal(err error) bool {
	ee, ok := AsEngineError(err)
	return ok && ee.IsFatal()
}
