// Package errors provides structured error types for reliefkit analyses.
//
// Every failure an analysis can report carries a machine-readable [Code] so
// that callers on the far side of an asynchronous boundary (a task runner,
// a polling client) can tell validation problems apart from computation
// failures without parsing message strings.
//
// # Error Codes
//
//   - INVALID_*: input validation failures, raised before any work is dispatched
//   - BOUNDS: a point lies outside the DEM extent
//   - IO, FORMAT, PROJECTION: the DEM could not be read, parsed or georeferenced
//   - CONDITIONING, INVALID_FLOW_GRAPH, NO_DRAINAGE_FOUND: watershed stages
//   - EMPTY_RESULT, COMPUTATION: rendering and engine failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeBounds, "point (%f, %f) is outside the DEM", x, y)
//	if errors.Is(err, errors.ErrCodeBounds) {
//	    // Handle out-of-extent request
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeIO, origErr, "open %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidLayer Code = "INVALID_LAYER"

	// Spatial errors
	ErrCodeBounds     Code = "BOUNDS"
	ErrCodeProjection Code = "PROJECTION"

	// Raster access errors
	ErrCodeIO     Code = "IO"
	ErrCodeFormat Code = "FORMAT"

	// Hydrology errors
	ErrCodeConditioning     Code = "CONDITIONING"
	ErrCodeInvalidFlowGraph Code = "INVALID_FLOW_GRAPH"
	ErrCodeNoDrainageFound  Code = "NO_DRAINAGE_FOUND"

	// Output errors
	ErrCodeEmptyResult Code = "EMPTY_RESULT"
	ErrCodeComputation Code = "COMPUTATION"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// coder is implemented by error types that carry a code without being *Error.
type coder interface {
	Code() Code
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or a coded error with a
// matching code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no coded error is found in the chain.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	var nd *NoDrainageError
	if errors.As(err, &nd) {
		return nd.Error()
	}
	return err.Error()
}

// NoDrainageError reports that no cell within the pour-point search window
// exceeded the minimum accumulation threshold.
type NoDrainageError struct {
	Radius   int     // Effective search radius in pixels
	Distance float64 // Requested snap distance in projected units
}

// Error implements the error interface.
func (e *NoDrainageError) Error() string {
	return fmt.Sprintf("no drainage channel found within %dm (search radius %d px); "+
		"try clicking closer to a stream or increase the snap distance",
		int(e.Distance), e.Radius)
}

// Code returns the error code for this error type.
func (e *NoDrainageError) Code() Code {
	return ErrCodeNoDrainageFound
}
