// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling for the manifesto pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies manifesto errors for policy decisions and monitoring.
type ErrorCode string

const (
	// CodeInternal indicates an internal error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeMining indicates a declaration miner failed to extract data
	// from a module.
	CodeMining ErrorCode = "MINING_ERROR"

	// CodeEnumeration indicates the module source failed to list modules.
	CodeEnumeration ErrorCode = "ENUMERATION_ERROR"

	// CodeSerialization indicates a manifest could not be encoded or decoded.
	CodeSerialization ErrorCode = "SERIALIZATION_ERROR"

	// CodeStorage indicates a manifest archive operation failed.
	CodeStorage ErrorCode = "STORAGE_ERROR"
)

// ManifestoError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type ManifestoError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ManifestoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ManifestoError) Unwrap() error {
	return e.Err
}

// New creates a new ManifestoError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *ManifestoError {
	return &ManifestoError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *ManifestoError) WithContext(key string, value interface{}) *ManifestoError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// AsManifestoError attempts to convert an error to a ManifestoError.
// Returns the error as ManifestoError if one is in the chain, or wraps it
// as internal otherwise.
func AsManifestoError(err error) *ManifestoError {
	if err == nil {
		return nil
	}
	var me *ManifestoError
	if stderrors.As(err, &me) {
		return me
	}
	return New(CodeInternal, "wrapped error", err)
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	var me *ManifestoError
	if !stderrors.As(err, &me) {
		return false
	}
	return me.Code == code
}
