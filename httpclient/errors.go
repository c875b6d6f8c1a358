package httpclient

import (
	"errors"
	"fmt"
)

// ErrorCode classifies HTTP client errors.
type ErrorCode int

const (
	// ErrCodeUnsupportedMethod indicates a method other than GET, POST,
	// PUT, DELETE or PATCH. Raised before any I/O.
	ErrCodeUnsupportedMethod ErrorCode = iota
	// ErrCodeTransport indicates the request could not be sent or no
	// response was received (DNS, connect, TLS, timeout, cancellation,
	// malformed URL).
	ErrCodeTransport
	// ErrCodeBodyRead indicates a failed body chunk read. It is logged and
	// absorbed into the Response, never returned from a call.
	ErrCodeBodyRead
	// ErrCodeValidation indicates invalid configuration or headers.
	ErrCodeValidation
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeUnsupportedMethod:
		return "unsupported_method"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeBodyRead:
		return "body_read"
	case ErrCodeValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a structured HTTP client error with classification.
type Error struct {
	// Code classifies the error.
	Code ErrorCode
	// Method is the HTTP method of the failed call, if known.
	Method string
	// URL is the resolved request URL, if known.
	URL string
	// Message describes the error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("httpclient: %s: %s %s: %s", e.Code, e.Method, e.URL, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewUnsupportedMethodError creates an unsupported-method error.
func NewUnsupportedMethodError(method string) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedMethod,
		Method:  method,
		Message: fmt.Sprintf("unsupported HTTP method %q", method),
	}
}

// NewTransportError creates a send failure for method and url.
func NewTransportError(method, url string, err error) *Error {
	return &Error{
		Code:    ErrCodeTransport,
		Method:  method,
		URL:     url,
		Message: err.Error(),
		Err:     err,
	}
}

// NewBodyReadError wraps a failed chunk read.
func NewBodyReadError(url string, err error) *Error {
	return &Error{
		Code:    ErrCodeBodyRead,
		URL:     url,
		Message: err.Error(),
		Err:     err,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(msg string, err error) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: msg,
		Err:     err,
	}
}

// IsUnsupportedMethod checks if an error is an unsupported-method error.
func IsUnsupportedMethod(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeUnsupportedMethod
}

// IsTransport checks if an error is a transport send failure.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeTransport
}

// IsBodyRead checks if an error is a body read fault.
func IsBodyRead(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeBodyRead
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeValidation
}
