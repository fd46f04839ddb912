package engine

import (
	"errors"
	"fmt"
)

// QueryError reports a failed engine call.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// View is the view external id the statement targeted.
	View string

	// Err is the underlying error.
	Err error
}

// QueryErrorCode categorizes engine errors.
type QueryErrorCode string

const (
	// ErrCodeInvalidStatement indicates the statement failed validation.
	ErrCodeInvalidStatement QueryErrorCode = "INVALID_STATEMENT"

	// ErrCodeAdapter indicates the adapter returned an error.
	ErrCodeAdapter QueryErrorCode = "ADAPTER"

	// ErrCodeDecode indicates a returned document did not fit the view model.
	ErrCodeDecode QueryErrorCode = "DECODE"

	// ErrCodeInvalidInstance indicates an instance cannot be written.
	ErrCodeInvalidInstance QueryErrorCode = "INVALID_INSTANCE"

	// ErrCodeUnsupported indicates the adapter lacks a capability.
	ErrCodeUnsupported QueryErrorCode = "UNSUPPORTED"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.View != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.View, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code QueryErrorCode) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// IsAdapterError returns true if the adapter failed.
// Uses errors.As to handle wrapped errors.
func IsAdapterError(err error) bool {
	return hasCode(err, ErrCodeAdapter)
}

// IsDecodeError returns true if a document could not be decoded.
func IsDecodeError(err error) bool {
	return hasCode(err, ErrCodeDecode)
}

// IsInvalidStatement returns true if the statement failed validation.
func IsInvalidStatement(err error) bool {
	return hasCode(err, ErrCodeInvalidStatement)
}
